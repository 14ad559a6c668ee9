package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// deliver sends webhook notifications for nt to all configured targets.
// Errors are logged but do not affect the caller.
func (n *Notifier) deliver(nt *Notification) {
	for _, wh := range n.webhooks {
		url := wh.URL()
		if url == "" {
			continue
		}

		var err error
		switch wh.Type {
		case "slack":
			err = n.sendSlack(url, nt)
		case "teams":
			err = n.sendTeams(url, nt)
		case "http":
			err = n.sendHTTP(url, nt)
		default:
			slog.Warn("notify: unknown webhook type — skipping", "type", wh.Type)
			continue
		}

		if err != nil {
			slog.Error("notify: webhook delivery failed",
				"type", wh.Type,
				"rule", nt.RuleName,
				"err", err,
			)
		} else {
			slog.Debug("notify: webhook delivered",
				"type", wh.Type,
				"rule", nt.RuleName,
			)
		}
	}
}

func (n *Notifier) sendSlack(url string, nt *Notification) error {
	body, _ := json.Marshal(map[string]string{
		"text": fmt.Sprintf("*[%s]* %s", nt.RuleName, nt.Message),
	})
	return n.post(url, body)
}

func (n *Notifier) sendTeams(url string, nt *Notification) error {
	payload := map[string]interface{}{
		"@type":    "MessageCard",
		"@context": "http://schema.org/extensions",
		"summary":  nt.RuleName,
		"title":    fmt.Sprintf("Tracklane: %s", nt.RuleName),
		"text":     nt.Message,
	}
	body, _ := json.Marshal(payload)
	return n.post(url, body)
}

func (n *Notifier) sendHTTP(url string, nt *Notification) error {
	body, _ := json.Marshal(map[string]interface{}{"notification": nt})
	return n.post(url, body)
}

func (n *Notifier) post(url string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}
