package notify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/tracklane/tracklane/internal/config"
)

const (
	defaultCooldown = 15 * time.Minute
	maxHistoryLen   = 200
)

// Notification is a single rule match produced by the notifier.
type Notification struct {
	ID         string    `json:"id"`
	RuleName   string    `json:"rule_name"`
	ProjectKey string    `json:"project_key"`
	Message    string    `json:"message"`
	Value      string    `json:"value"`
	FiredAt    time.Time `json:"fired_at"`
}

// Notifier evaluates configured rules against task events and delivers
// webhook notifications when rules match. It implements the bridge's
// Notifier seam.
//
// Notifier is safe for concurrent use.
type Notifier struct {
	rules    []config.NotifyRule
	webhooks []config.WebhookConfig

	mu       sync.Mutex
	lastFire map[string]time.Time // key: "ruleName:projectKey" (for cooldown)
	history  []*Notification
	client   *http.Client
	now      func() time.Time
}

// New creates a Notifier from the notify configuration.
// A Notifier with empty rules is valid — Evaluate becomes a no-op.
func New(cfg config.NotifyConfig) *Notifier {
	return &Notifier{
		rules:    cfg.Rules,
		webhooks: cfg.Webhooks,
		lastFire: make(map[string]time.Time),
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
	}
}

// Evaluate tests all configured rules against the event payload published
// for projectKey. Rules that match within their cooldown window are
// suppressed; otherwise webhook delivery is triggered asynchronously.
// Payloads that do not decode as a JSON object are ignored.
func (n *Notifier) Evaluate(projectKey string, payload []byte) {
	if len(n.rules) == 0 {
		return
	}

	var ev map[string]interface{}
	if err := json.Unmarshal(payload, &ev); err != nil {
		return
	}

	now := n.now()
	for _, rule := range n.rules {
		fires, value := evalCondition(rule.Condition, ev)
		if !fires {
			continue
		}

		key := rule.Name + ":" + projectKey

		n.mu.Lock()
		cooldown := rule.Cooldown
		if cooldown <= 0 {
			cooldown = defaultCooldown
		}
		if now.Sub(n.lastFire[key]) <= cooldown {
			n.mu.Unlock()
			continue
		}
		n.lastFire[key] = now

		nt := &Notification{
			ID:         fmt.Sprintf("%s:%s:%d", rule.Name, projectKey, now.UnixNano()),
			RuleName:   rule.Name,
			ProjectKey: projectKey,
			Value:      value,
			Message: fmt.Sprintf("%s matched on project %s — %s (value %s)",
				rule.Name, projectKey, rule.Condition, value),
			FiredAt: now,
		}
		n.history = append(n.history, nt)
		if len(n.history) > maxHistoryLen {
			n.history = n.history[len(n.history)-maxHistoryLen:]
		}
		cp := *nt
		n.mu.Unlock()

		slog.Info("notify: rule matched",
			"rule", rule.Name,
			"project", projectKey,
			"value", value,
		)
		go n.deliver(&cp)
	}
}

// Recent returns copies of the most recently fired notifications, newest last.
func (n *Notifier) Recent() []*Notification {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]*Notification, 0, len(n.history))
	for _, nt := range n.history {
		cp := *nt
		out = append(out, &cp)
	}
	return out
}
