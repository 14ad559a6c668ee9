// Package notify implements rule evaluation and webhook delivery for task
// events. Rules are simple "field op value" conditions evaluated against the
// JSON events the mutation bridge publishes; matches are delivered to Slack,
// Teams, or generic HTTP targets, with a per-rule cooldown per project.
package notify
