package telegram

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/itchyny/gojq"

	"github.com/eneris/battlemap/internal/battlemap"
)

// maxRawChars keeps /req output inside telegram's message limit.
const maxRawChars = 3500

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// timeLeft renders the remaining time until a server timestamp, "" when the
// timestamp does not parse or already passed.
func timeLeft(raw string, now time.Time) string {
	for _, layout := range timeLayouts {
		ts, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		left := ts.Sub(now)
		if left <= 0 {
			return ""
		}
		return left.Round(time.Second).String()
	}
	return ""
}

func formatBattleDetail(d *battlemap.BattleDetail, now time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>Battle %d</b> %s\n", d.ID, html.EscapeString(d.UniqueName))
	fmt.Fprintf(&sb, "%s vs %s\n",
		html.EscapeString(d.OwnBaseName), html.EscapeString(d.OppoBaseName))
	fmt.Fprintf(&sb, "Profit: own %d / oppo %d\n", d.OwnBaseFinalProfit, d.OppoBaseFinalProfit)
	fmt.Fprintf(&sb, "Cluster strength: %d vs %d\n", d.OwnClusterStrength, d.OppoClusterStrength)
	fmt.Fprintf(&sb, "Reserved power: %d\n", d.ReservedPower)

	switch {
	case d.IsCancelled != 0:
		sb.WriteString("Status: cancelled")
	case d.IsDone != 0:
		sb.WriteString("Status: resolved")
	default:
		sb.WriteString("Status: in progress")
		if left := timeLeft(d.AttackOn, now); left != "" {
			fmt.Fprintf(&sb, ", %s left", left)
		}
	}
	return sb.String()
}

func formatBattleList(battles []battlemap.Battle) string {
	if len(battles) == 0 {
		return "No battles in the log."
	}

	var sb strings.Builder
	sb.WriteString("<b>Battle log</b>\n")
	for _, b := range battles {
		status := "live"
		if b.Finished != 0 {
			status = "done"
		}
		fmt.Fprintf(&sb, "%d: %s vs %s [%s]\n",
			b.ID, html.EscapeString(b.OwnBase), html.EscapeString(b.OppoBase), status)
	}
	return sb.String()
}

func formatBaseDetail(d *battlemap.BaseDetail) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>%s</b> (id %d)\n", html.EscapeString(d.Name), d.BsID)
	if d.Owner != "" {
		fmt.Fprintf(&sb, "Owner: %s\n", html.EscapeString(d.Owner))
	}
	if d.ClusterName != "" {
		fmt.Fprintf(&sb, "Cluster: %s\n", html.EscapeString(d.ClusterName))
	}
	fmt.Fprintf(&sb, "Level %d, health %.0f/%d\n", d.Level, d.Health, d.MaxHealth)
	fmt.Fprintf(&sb, "Power: %d available / %d used\n", d.AvailPower, d.UsedPower)
	fmt.Fprintf(&sb, "Location: %.5f, %.5f", d.Latitude, d.Longitude)
	if d.Melting {
		sb.WriteString("\nMELTING")
	}
	return sb.String()
}

func formatSearchResults(results []battlemap.SearchResult) string {
	if len(results) == 0 {
		return "No matches."
	}

	var sb strings.Builder
	for _, r := range results {
		fmt.Fprintf(&sb, "%d: %s (%s)\n", r.ID, html.EscapeString(r.Name), r.Type)
	}
	return sb.String()
}

// parseReqArgs splits "/req <operation> [jq filter]" payload text. The
// filter is everything after the first space so jq expressions can contain
// spaces themselves.
func parseReqArgs(payload string) (operation, filter string, ok bool) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return "", "", false
	}

	parts := strings.SplitN(payload, " ", 2)
	operation = parts[0]
	if !strings.HasPrefix(operation, "/") {
		operation = "/" + operation
	}
	if len(parts) == 2 {
		filter = strings.TrimSpace(parts[1])
	}
	return operation, filter, true
}

// formatRawResponse renders a relay response for chat, applying an optional
// jq filter and truncating oversized output.
func formatRawResponse(resp interface{}, filter string) (string, error) {
	if filter != "" {
		query, err := gojq.Parse(filter)
		if err != nil {
			return "", fmt.Errorf("bad filter: %w", err)
		}

		var outputs []interface{}
		iter := query.Run(resp)
		for {
			v, ok := iter.Next()
			if !ok {
				break
			}
			if err, isErr := v.(error); isErr {
				return "", err
			}
			outputs = append(outputs, v)
		}
		switch len(outputs) {
		case 0:
			resp = nil
		case 1:
			resp = outputs[0]
		default:
			resp = outputs
		}
	}

	raw, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", err
	}

	text := string(raw)
	if len(text) > maxRawChars {
		text = text[:maxRawChars] + "\n... (truncated)"
	}
	return "<pre>" + html.EscapeString(text) + "</pre>", nil
}
