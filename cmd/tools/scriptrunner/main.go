// scriptrunner 按 TOML 脚本回放一段对话，用于对运行中的服务做冒烟测试。
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/BurntSushi/toml"
)

type scenario struct {
	ChapterID int64  `toml:"chapter_id"`
	UserID    int64  `toml:"user_id"`
	Steps     []step `toml:"step"`
}

type step struct {
	Action    string `toml:"action"` // commit | rollback | suggestions | analyze | novel
	Text      string `toml:"text"`
	MessageID int64  `toml:"message_id"`
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	base := flag.String("base", "http://127.0.0.1:8080", "服务地址")
	scenarioPath := flag.String("scenario", "", "TOML 脚本路径")
	timeout := flag.Duration("timeout", 120*time.Second, "单步请求超时时间")
	flag.Parse()

	if *scenarioPath == "" {
		flag.Usage()
		log.Fatal("请通过 -scenario 指定脚本文件")
	}

	var sc scenario
	if _, err := toml.DecodeFile(*scenarioPath, &sc); err != nil {
		log.Fatalf("脚本解析失败: %v", err)
	}
	if sc.ChapterID <= 0 || sc.UserID <= 0 {
		log.Fatal("脚本缺少 chapter_id 或 user_id")
	}

	hc := &http.Client{Timeout: *timeout}

	sessionID, err := createSession(hc, *base, sc.ChapterID, sc.UserID)
	if err != nil {
		log.Fatalf("创建会话失败: %v", err)
	}
	log.Printf("[runner] session=%s chapter=%d", sessionID, sc.ChapterID)

	for i, st := range sc.Steps {
		if err := runStep(hc, *base, sessionID, st); err != nil {
			log.Fatalf("第 %d 步 (%s) 失败: %v", i+1, st.Action, err)
		}
	}

	log.Printf("[runner] scenario finished, %d steps", len(sc.Steps))
}

func createSession(hc *http.Client, base string, chapterID, userID int64) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	body := map[string]int64{"chapter_id": chapterID, "user_id": userID}
	if err := call(hc, http.MethodPost, base+"/api/sessions", body, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func runStep(hc *http.Client, base, sessionID string, st step) error {
	prefix := fmt.Sprintf("%s/api/sessions/%s", base, sessionID)

	switch st.Action {
	case "commit":
		var out struct {
			AssistantMessage struct {
				Content string `json:"content"`
			} `json:"assistant_message"`
		}
		if err := call(hc, http.MethodPost, prefix+"/commit", map[string]string{"text": st.Text}, &out); err != nil {
			return err
		}
		log.Printf("[runner] assistant: %s", out.AssistantMessage.Content)
	case "rollback":
		if err := call(hc, http.MethodPost, prefix+"/rollback", map[string]int64{"message_id": st.MessageID}, nil); err != nil {
			return err
		}
		log.Printf("[runner] rolled back to message %d", st.MessageID)
	case "suggestions":
		var out struct {
			Suggestions []string `json:"suggestions"`
		}
		if err := call(hc, http.MethodGet, prefix+"/suggestions", nil, &out); err != nil {
			return err
		}
		log.Printf("[runner] %d suggestions", len(out.Suggestions))
	case "analyze":
		var out struct {
			Analysis string `json:"analysis"`
		}
		if err := call(hc, http.MethodPost, prefix+"/analyze", nil, &out); err != nil {
			return err
		}
		log.Printf("[runner] analysis length=%d", len(out.Analysis))
	case "novel":
		var out struct {
			Title string `json:"title"`
		}
		if err := call(hc, http.MethodPost, prefix+"/novels", nil, &out); err != nil {
			return err
		}
		log.Printf("[runner] novel saved: %s", out.Title)
	default:
		return fmt.Errorf("unknown action %q", st.Action)
	}
	return nil
}

func call(hc *http.Client, method, url string, payload, out any) error {
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("status %d: %s", resp.StatusCode, apiErr.Error)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
