package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/banshee-data/scopedb/internal/scan"
)

// scanFile is the ingest document:
//
//	{
//	  "start": "2024-03-01T12:00:00.123456Z",
//	  "numeric": {"R1XXITOT": 12.5},
//	  "text": {"mode": "cw"},
//	  "channels": [
//	    {"name": "1L05", "rate_hz": 5000, "signals": {"GMES": [...], "PMES": [...]}}
//	  ]
//	}
type scanFile struct {
	Start    time.Time          `json:"start"`
	Numeric  map[string]float64 `json:"numeric,omitempty"`
	Text     map[string]string  `json:"text,omitempty"`
	Channels []channelFile      `json:"channels"`
}

type channelFile struct {
	Name     string            `json:"name"`
	RateHz   float64           `json:"rate_hz"`
	Signals  map[string][]any  `json:"signals"`
	Comments map[string]string `json:"comments,omitempty"`
}

func decodeScan(r io.Reader) (*scan.Scan, error) {
	var doc scanFile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse scan JSON: %w", err)
	}
	if doc.Start.IsZero() {
		return nil, fmt.Errorf("scan start time is required")
	}

	s := scan.New(doc.Start)
	if err := s.AddScanData(doc.Numeric, doc.Text); err != nil {
		return nil, err
	}
	for _, ch := range doc.Channels {
		if ch.Name == "" {
			return nil, fmt.Errorf("channel name is required")
		}
		if err := s.AddChannelValues(ch.Name, ch.Signals, ch.RateHz); err != nil {
			return nil, err
		}
		for signal, comment := range ch.Comments {
			if err := s.SetComment(ch.Name, signal, comment); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}
