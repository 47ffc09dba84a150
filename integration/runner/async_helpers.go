package runner

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/lingua-quest/internal/handlers"
	"github.com/jwebster45206/lingua-quest/internal/services/events"
	"github.com/jwebster45206/lingua-quest/pkg/chat"
	"github.com/jwebster45206/lingua-quest/pkg/contract"
	"github.com/jwebster45206/lingua-quest/pkg/state"
)

const (
	// TurnTimeout is max time to wait for a queued turn to finish
	TurnTimeout = 90 * time.Second
	// ConnectTimeout bounds opening the event stream
	ConnectTimeout = 10 * time.Second
)

// TurnOutcome is the result block of a turn.completed event
type TurnOutcome struct {
	Narration string           `json:"narration"`
	Display   contract.Display `json:"display"`
	Parsed    bool             `json:"parsed"`
	Attempts  int              `json:"attempts"`
	State     *state.GameState `json:"state"`
}

// CreateSession posts a seed and returns the new session
func CreateSession(ctx context.Context, client *http.Client, baseURL string, contractVersion string, seed state.Seed) (*handlers.SessionResponse, error) {
	body, err := json.Marshal(handlers.CreateSessionRequest{Contract: contractVersion, Seed: seed})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal create request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create POST request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var session handlers.SessionResponse
	if err := doJSON(client, req, http.StatusCreated, &session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &session, nil
}

// GetSession retrieves the current session
func GetSession(ctx context.Context, client *http.Client, baseURL string, gameStateID uuid.UUID) (*handlers.SessionResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/v1/sessions/%s", baseURL, gameStateID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create session request: %w", err)
	}

	var session handlers.SessionResponse
	if err := doJSON(client, req, http.StatusOK, &session); err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &session, nil
}

// PostTurn queues a turn and returns its request_id. An empty message on a
// new session queues the opening turn.
func PostTurn(ctx context.Context, client *http.Client, baseURL string, gameStateID uuid.UUID, message string) (string, error) {
	body, err := json.Marshal(chat.TurnRequest{GameStateID: gameStateID, Message: message})
	if err != nil {
		return "", fmt.Errorf("failed to marshal turn request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/sessions/%s/turns", baseURL, gameStateID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create turn request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var accepted chat.TurnAccepted
	if err := doJSON(client, req, http.StatusAccepted, &accepted); err != nil {
		return "", fmt.Errorf("post turn: %w", err)
	}
	return accepted.RequestID, nil
}

func doJSON(client *http.Client, req *http.Request, wantStatus int, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != wantStatus {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("returned %d (expected %d): %s", resp.StatusCode, wantStatus, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// EventStream reads one session's server-sent events
type EventStream struct {
	body    io.ReadCloser
	events  chan events.Event
	done    chan struct{}
	closing chan struct{}
}

// OpenEventStream connects to the session's event stream and returns once the
// server confirms the subscription. client must not carry a request timeout.
func OpenEventStream(ctx context.Context, client *http.Client, baseURL string, gameStateID uuid.UUID) (*EventStream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/v1/events/sessions/%s", baseURL, gameStateID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create events request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to open event stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, fmt.Errorf("events endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	s := &EventStream{
		body:    resp.Body,
		events:  make(chan events.Event, 16),
		done:    make(chan struct{}),
		closing: make(chan struct{}),
	}
	connected := make(chan struct{})
	go s.read(connected)

	select {
	case <-connected:
		return s, nil
	case <-s.done:
		return nil, fmt.Errorf("event stream closed before connecting")
	case <-time.After(ConnectTimeout):
		_ = s.Close()
		return nil, fmt.Errorf("timeout waiting for event stream (waited %v)", ConnectTimeout)
	}
}

func (s *EventStream) read(connected chan struct{}) {
	defer close(s.done)
	defer close(s.events)

	scanner := bufio.NewScanner(s.body)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var name string
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		case line == "":
			if name == "connected" {
				if connected != nil {
					close(connected)
					connected = nil
				}
			} else if data.Len() > 0 {
				var event events.Event
				if err := json.Unmarshal([]byte(data.String()), &event); err == nil {
					select {
					case s.events <- event:
					case <-s.closing:
						return
					}
				}
			}
			name = ""
			data.Reset()
		}
	}
}

// WaitForTurn blocks until the request finishes. A turn.failed event is
// returned as an error.
func (s *EventStream) WaitForTurn(ctx context.Context, requestID string) (*TurnOutcome, error) {
	timeout := time.After(TurnTimeout)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeout:
			return nil, fmt.Errorf("timeout waiting for turn %s (waited %v)", requestID, TurnTimeout)
		case event, ok := <-s.events:
			if !ok {
				return nil, fmt.Errorf("event stream closed while waiting for turn %s", requestID)
			}
			if event.RequestID != requestID {
				continue
			}
			switch event.Type {
			case events.EventTypeTurnFailed:
				return nil, fmt.Errorf("turn failed: %v", event.Data["error"])
			case events.EventTypeTurnCompleted:
				return decodeOutcome(event)
			}
		}
	}
}

func decodeOutcome(event events.Event) (*TurnOutcome, error) {
	raw, err := json.Marshal(event.Data["result"])
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode turn result: %w", err)
	}
	var outcome TurnOutcome
	if err := json.Unmarshal(raw, &outcome); err != nil {
		return nil, fmt.Errorf("failed to decode turn result: %w", err)
	}
	return &outcome, nil
}

// Close ends the stream
func (s *EventStream) Close() error {
	close(s.closing)
	return s.body.Close()
}
