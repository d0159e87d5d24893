package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Status is one observation of the face-tracker sidecar that feeds the
// engine its ROI color samples.
type Status struct {
	State          string
	FPS            float64
	SubjectPresent bool
}

// Poll reports the tracker status through update, once immediately and
// then on every tick, until ctx is cancelled. The request timeout stays
// below any sane interval so polls never pile up.
func Poll(ctx context.Context, baseURL string, interval time.Duration, update func(Status)) {
	if baseURL == "" || update == nil {
		return
	}
	baseURL = strings.TrimRight(baseURL, "/")
	client := &http.Client{
		Timeout: 900 * time.Millisecond,
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		update(fetch(ctx, client, baseURL+"/api/v1/status"))

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func fetch(ctx context.Context, client *http.Client, endpoint string) Status {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Status{State: "error"}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Status{State: "unreachable"}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Status{State: fmt.Sprintf("http_%d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Status{State: "error"}
	}
	return parseStatus(body)
}

// parseStatus is tolerant of sidecar variations: any of the usual state
// keys counts, extra fields are ignored.
func parseStatus(payload []byte) Status {
	status := Status{State: "ok"}
	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return status
	}
	if state := findState(decoded); state != "" {
		status.State = state
	}
	if fps, ok := decoded["fps"].(float64); ok {
		status.FPS = fps
	}
	if present, ok := decoded["subject_present"].(bool); ok {
		status.SubjectPresent = present
	}
	return status
}

func findState(value any) string {
	switch v := value.(type) {
	case map[string]any:
		for _, key := range []string{"state", "status", "value"} {
			if entry, ok := v[key]; ok {
				switch inner := entry.(type) {
				case string:
					return strings.ToLower(inner)
				default:
					if nested := findState(inner); nested != "" {
						return nested
					}
				}
			}
		}
	case []any:
		for _, entry := range v {
			if nested := findState(entry); nested != "" {
				return nested
			}
		}
	}
	return ""
}
