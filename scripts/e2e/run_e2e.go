// Package main runs end-to-end scenarios against a running concierge API.
//
// Each scenario uses a fresh session id and talks to the public chat endpoints
// only, so it is safe to run against any environment.
//
// Usage:
//
//	API_BASE_URL=http://localhost:8080 go run ./scripts/e2e              # runs all
//	API_BASE_URL=http://localhost:8080 go run ./scripts/e2e happy-path   # runs one
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	apiBase string
	client  = &http.Client{Timeout: 45 * time.Second}
)

type scenario struct {
	Name string
	Fn   func(t *T)
}

// T is a lightweight test context for a single scenario.
type T struct {
	passed  int
	failed  int
	name    string
	session string
}

func (t *T) check(name string, ok bool) {
	if ok {
		fmt.Printf("    PASS: %s\n", name)
		t.passed++
	} else {
		fmt.Printf("    FAIL: %s\n", name)
		t.failed++
	}
}

func (t *T) fatalf(format string, args ...interface{}) {
	fmt.Printf("    FATAL: "+format+"\n", args...)
	t.failed++
}

type turn struct {
	Message string `json:"message"`
	IsUser  bool   `json:"is_user"`
}

type historyResponse struct {
	History []turn `json:"history"`
}

func (t *T) do(method, path string, payload interface{}) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, apiBase+path, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Session-ID", t.session)
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	return resp.StatusCode, out, err
}

// send posts one chat message and returns the assistant's reply.
func (t *T) send(text string) (string, error) {
	fmt.Printf("    > %s\n", text)
	status, body, err := t.do(http.MethodPost, "/message", map[string]string{"prompt": text})
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("POST /message returned %d: %s", status, string(body))
	}
	var resp historyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", err
	}
	reply := lastAssistantMessage(resp.History)
	fmt.Printf("    < %s\n", reply)
	return reply, nil
}

func (t *T) history() ([]turn, error) {
	status, body, err := t.do(http.MethodGet, "/history", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("GET /history returned %d", status)
	}
	var resp historyResponse
	err = json.Unmarshal(body, &resp)
	return resp.History, err
}

func lastAssistantMessage(history []turn) string {
	for i := len(history) - 1; i >= 0; i-- {
		if !history[i].IsUser {
			return history[i].Message
		}
	}
	return ""
}

func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// firstSlot asks the API for the advertised slots so scenarios book something
// the deployment actually offers.
func firstSlot() (string, string, error) {
	resp, err := client.Get(apiBase + "/slots")
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	var payload struct {
		Slots []struct {
			Date      string `json:"date"`
			TimeRange string `json:"time_range"`
		} `json:"slots"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", "", err
	}
	if len(payload.Slots) == 0 {
		return "", "", fmt.Errorf("no slots advertised")
	}
	return payload.Slots[0].Date, payload.Slots[0].TimeRange, nil
}

func scenarioHappyPath(t *T) {
	date, timeRange, err := firstSlot()
	if err != nil {
		t.fatalf("slots: %v", err)
		return
	}

	reply, err := t.send(fmt.Sprintf("I'd like to book an appointment for %s %s", date, timeRange))
	if err != nil {
		t.fatalf("%v", err)
		return
	}
	t.check("asks for confirmation", containsAny(reply, "yes", "confirm"))

	reply, err = t.send("yes")
	if err != nil {
		t.fatalf("%v", err)
		return
	}
	t.check("confirms booking", containsAny(reply, "booked"))
	t.check("asks for email", containsAny(reply, "email"))

	reply, err = t.send("e2e-guest@example.com")
	if err != nil {
		t.fatalf("%v", err)
		return
	}
	t.check("asks for name", containsAny(reply, "name"))

	reply, err = t.send("Jordan Test")
	if err != nil {
		t.fatalf("%v", err)
		return
	}
	t.check("closing addresses guest", containsAny(reply, "Jordan"))
}

func scenarioDeclineBooking(t *T) {
	date, timeRange, err := firstSlot()
	if err != nil {
		t.fatalf("slots: %v", err)
		return
	}
	if _, err := t.send(fmt.Sprintf("Can I schedule %s %s?", date, timeRange)); err != nil {
		t.fatalf("%v", err)
		return
	}
	reply, err := t.send("no")
	if err != nil {
		t.fatalf("%v", err)
		return
	}
	t.check("acknowledges cancellation", containsAny(reply, "cancel"))
}

func scenarioUnclearConfirmation(t *T) {
	date, timeRange, err := firstSlot()
	if err != nil {
		t.fatalf("slots: %v", err)
		return
	}
	if _, err := t.send(fmt.Sprintf("Book me for %s %s", date, timeRange)); err != nil {
		t.fatalf("%v", err)
		return
	}
	reply, err := t.send("hmm, maybe?")
	if err != nil {
		t.fatalf("%v", err)
		return
	}
	t.check("re-prompts for yes or no", containsAny(reply, "yes") && containsAny(reply, "no"))
}

func scenarioCompanyQuestion(t *T) {
	reply, err := t.send("What services do you offer?")
	if err != nil {
		t.fatalf("%v", err)
		return
	}
	t.check("answers with text", strings.TrimSpace(reply) != "")
}

func scenarioSlotMenu(t *T) {
	reply, err := t.send("What times are available?")
	if err != nil {
		t.fatalf("%v", err)
		return
	}
	date, _, err := firstSlot()
	if err != nil {
		t.fatalf("slots: %v", err)
		return
	}
	t.check("mentions an advertised date", containsAny(reply, date))
}

func scenarioClear(t *T) {
	if _, err := t.send("Hello!"); err != nil {
		t.fatalf("%v", err)
		return
	}
	status, _, err := t.do(http.MethodPost, "/clear", nil)
	if err != nil {
		t.fatalf("%v", err)
		return
	}
	t.check("clear returns 200", status == http.StatusOK)
	history, err := t.history()
	if err != nil {
		t.fatalf("%v", err)
		return
	}
	t.check("history is empty after clear", len(history) == 0)
}

func main() {
	apiBase = strings.TrimRight(os.Getenv("API_BASE_URL"), "/")
	if apiBase == "" {
		fmt.Fprintln(os.Stderr, "ERROR: API_BASE_URL required")
		os.Exit(1)
	}

	scenarios := []scenario{
		{"happy-path", scenarioHappyPath},
		{"decline-booking", scenarioDeclineBooking},
		{"unclear-confirmation", scenarioUnclearConfirmation},
		{"company-question", scenarioCompanyQuestion},
		{"slot-menu", scenarioSlotMenu},
		{"clear", scenarioClear},
	}

	filter := ""
	if len(os.Args) > 1 {
		filter = os.Args[1]
	}

	totalPassed := 0
	totalFailed := 0
	results := make([]string, 0, len(scenarios))

	for _, s := range scenarios {
		if filter != "" && s.Name != filter {
			continue
		}

		fmt.Printf("\n========================================\n")
		fmt.Printf("SCENARIO: %s\n", s.Name)
		fmt.Printf("========================================\n")

		t := &T{name: s.Name, session: "e2e-" + uuid.NewString()}
		s.Fn(t)

		totalPassed += t.passed
		totalFailed += t.failed

		status := "PASS"
		if t.failed > 0 {
			status = "FAIL"
		}
		results = append(results, fmt.Sprintf("  %s %s (%d passed, %d failed)", status, s.Name, t.passed, t.failed))
	}

	fmt.Printf("\n========================================\n")
	fmt.Printf("SUMMARY: %d passed, %d failed\n", totalPassed, totalFailed)
	for _, r := range results {
		fmt.Println(r)
	}
	if totalFailed > 0 {
		os.Exit(1)
	}
}
