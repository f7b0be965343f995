package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
)

type scenario struct {
	Name        string
	Description string
}

type model struct {
	scenarios []scenario
	selected  int
	status    string
	detail    string
	busy      bool
}

func initialModel() model {
	return model{
		scenarios: []scenario{
			{"place", "Place an order"},
			{"replay", "Place twice with one idempotency key"},
			{"lifecycle", "Walk an order to shipped"},
			{"cancel", "Place then cancel"},
			{"bench", "Concurrent duplicates of one key"},
		},
		status: "Ready",
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "up":
			if m.selected > 0 {
				m.selected--
			}
		case "down":
			if m.selected < len(m.scenarios)-1 {
				m.selected++
			}
		case "enter":
			if m.busy {
				return m, nil
			}
			m.busy = true
			m.status = "Running..."
			return m, runScenarioCmd(m.scenarios[m.selected].Name)
		}
	case scenarioResult:
		m.busy = false
		m.status = msg.status
		m.detail = msg.detail
	}
	return m, nil
}

func (m model) View() string {
	b := &strings.Builder{}
	fmt.Fprintln(b, "ordering CLI")
	fmt.Fprintln(b, "")
	fmt.Fprintln(b, "Scenarios:")
	for i, scn := range m.scenarios {
		marker := " "
		if i == m.selected {
			marker = ">"
		}
		fmt.Fprintf(b, " %s %s - %s\n", marker, scn.Name, scn.Description)
	}
	fmt.Fprintln(b, "")
	fmt.Fprintf(b, "Status: %s\n", m.status)
	if m.detail != "" {
		fmt.Fprintf(b, "Detail: %s\n", m.detail)
	}
	fmt.Fprintln(b, "\nControls: up/down select, enter to run, q to quit")
	return b.String()
}

type scenarioResult struct {
	status string
	detail string
}

func runScenarioCmd(scn string) tea.Cmd {
	return func() tea.Msg {
		baseURL := strings.TrimRight(getenv("ORDERING_BASE_URL", "http://localhost:8080"), "/")
		switch scn {
		case "replay":
			return runReplay(baseURL)
		case "lifecycle":
			return runLifecycle(baseURL)
		case "cancel":
			return runCancel(baseURL)
		case "bench":
			return runBench(baseURL)
		default:
			resp, err := placeOrder(baseURL, uuid.NewString())
			if err != nil {
				return scenarioResult{status: fmt.Sprintf("Place failed: %v", err)}
			}
			return scenarioResult{status: "Order placed", detail: fmt.Sprintf("order_id=%s status=%s", resp.OrderID, resp.Status)}
		}
	}
}

func runReplay(baseURL string) scenarioResult {
	key := uuid.NewString()
	first, err := placeOrder(baseURL, key)
	if err != nil {
		return scenarioResult{status: fmt.Sprintf("Place failed: %v", err)}
	}
	second, err := placeOrder(baseURL, key)
	if err != nil {
		return scenarioResult{status: fmt.Sprintf("Replay failed: %v", err)}
	}
	if second.OrderID != first.OrderID {
		return scenarioResult{status: "MISMATCH", detail: fmt.Sprintf("first=%s second=%s", first.OrderID, second.OrderID)}
	}
	return scenarioResult{status: "Replay returned the original order", detail: fmt.Sprintf("order_id=%s second_status=%s", first.OrderID, second.Status)}
}

func runLifecycle(baseURL string) scenarioResult {
	placed, err := placeOrder(baseURL, uuid.NewString())
	if err != nil {
		return scenarioResult{status: fmt.Sprintf("Place failed: %v", err)}
	}
	steps := []string{"confirm-grace-period", "confirm-stock", "confirm-payment", "ship"}
	for _, step := range steps {
		if _, err := postCommand(baseURL, placed.OrderID, step, nil); err != nil {
			return scenarioResult{status: fmt.Sprintf("%s failed: %v", step, err)}
		}
	}
	return scenarioResult{status: "Order shipped", detail: "order_id=" + placed.OrderID}
}

func runCancel(baseURL string) scenarioResult {
	placed, err := placeOrder(baseURL, uuid.NewString())
	if err != nil {
		return scenarioResult{status: fmt.Sprintf("Place failed: %v", err)}
	}
	resp, err := postCommand(baseURL, placed.OrderID, "cancel", map[string]any{"reason": "changed my mind"})
	if err != nil {
		return scenarioResult{status: fmt.Sprintf("Cancel failed: %v", err)}
	}
	return scenarioResult{status: "Order cancelled", detail: fmt.Sprintf("order_id=%s status=%s", placed.OrderID, resp.Status)}
}

// runBench fires concurrent placements with one shared key. Exactly one
// request should create an order; the rest replay or lose the race.
func runBench(baseURL string) scenarioResult {
	const attempts = 20
	key := uuid.NewString()

	var mu sync.Mutex
	ids := map[string]bool{}
	var replays, conflicts, failures int

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := placeOrder(baseURL, key)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil && strings.Contains(err.Error(), "status 409"):
				conflicts++
			case err != nil:
				failures++
			default:
				ids[resp.OrderID] = true
				if resp.Status == "idempotent_replay" {
					replays++
				}
			}
		}()
	}
	wg.Wait()

	detail := fmt.Sprintf("distinct_orders=%d replays=%d conflicts=%d failures=%d", len(ids), replays, conflicts, failures)
	if len(ids) != 1 || failures > 0 {
		return scenarioResult{status: "Bench FAILED", detail: detail}
	}
	return scenarioResult{status: "Bench OK: one order for one key", detail: detail}
}

type commandResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

func placeOrder(baseURL, key string) (commandResponse, error) {
	payload := map[string]any{
		"buyer_id":   "buyer-42",
		"buyer_name": "Ada Lovelace",
		"address": map[string]any{
			"street": "1 Analytical Way", "city": "London", "state": "",
			"country": "UK", "zip_code": "N1 9GU",
		},
		"card": map[string]any{
			"type": "visa", "number": "XXXX-XXXX-XXXX-4242",
			"holder": "ADA LOVELACE", "expiration": time.Now().AddDate(2, 0, 0).Format(time.RFC3339),
		},
		"items": []map[string]any{
			{"product_id": "p-1", "product_name": "Mug", "unit_price": 100, "discount": 0, "quantity": 2},
		},
	}
	return postJSON(baseURL+"/orders", key, payload)
}

func postCommand(baseURL, orderID, step string, payload any) (commandResponse, error) {
	return postJSON(fmt.Sprintf("%s/orders/%s/%s", baseURL, orderID, step), uuid.NewString(), payload)
}

func postJSON(url, key string, payload any) (commandResponse, error) {
	var body io.Reader
	if payload != nil {
		data, _ := json.Marshal(payload)
		body = bytes.NewReader(data)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return commandResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", key)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return commandResponse{}, err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return commandResponse{}, fmt.Errorf("status %d: %s", resp.StatusCode, string(raw))
	}
	var out commandResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return commandResponse{}, err
	}
	return out, nil
}

func main() {
	runCmd := flag.String("run", "", "run scenario: place|replay|lifecycle|cancel|bench")
	flag.Parse()

	if *runCmd != "" {
		res := runScenarioCmd(*runCmd)().(scenarioResult)
		fmt.Println(res.status)
		if res.detail != "" {
			fmt.Println(res.detail)
		}
		return
	}

	p := tea.NewProgram(initialModel())
	if _, err := p.Run(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func getenv(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}
