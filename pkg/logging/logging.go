package logging

import (
	"encoding/json"
	"log"
	"time"
)

type Fields struct {
	Service    string `json:"service"`
	OrderID    string `json:"order_id,omitempty"`
	EventID    string `json:"event_id,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	Command    string `json:"command,omitempty"`
	Step       string `json:"step,omitempty"`
	Status     string `json:"status,omitempty"`
	Attempts   int32  `json:"attempts,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
	Message    string `json:"message,omitempty"`
}

func Log(fields Fields) {
	payload := map[string]any{
		"service":     fields.Service,
		"order_id":    fields.OrderID,
		"event_id":    fields.EventID,
		"request_id":  fields.RequestID,
		"command":     fields.Command,
		"step":        fields.Step,
		"status":      fields.Status,
		"attempts":    fields.Attempts,
		"duration_ms": fields.DurationMS,
		"message":     fields.Message,
		"timestamp":   time.Now().UTC().Format(time.RFC3339Nano),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("{\"service\":%q,\"status\":\"log_error\",\"error\":%q}", fields.Service, err.Error())
		return
	}
	log.Print(string(data))
}
