// Package scan holds the in-memory scan aggregate: the channel waveforms of
// one recording session, their derived analysis and the scan metadata. A Scan
// is populated through its Add methods and written once through a store
// Gateway.
package scan

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/banshee-data/scopedb/internal/analysis"
	"github.com/banshee-data/scopedb/internal/fold"
	"github.com/banshee-data/scopedb/internal/store"
)

// TimeSignal is the reserved signal name for a channel's time axis. It is
// implied by the sampling rate and is never analyzed or stored.
const TimeSignal = "Time"

// RawProcess is the array name under which unmodified samples are stored.
const RawProcess = "raw"

var (
	// ErrShapeMismatch is returned when a metadata name would be both
	// numeric and text.
	ErrShapeMismatch = errors.New("metadata name is both numeric and text")
	// ErrUnknownWaveform is returned for a channel/signal pair the scan does not hold.
	ErrUnknownWaveform = errors.New("unknown waveform")
	// ErrPersisted is returned when inserting a scan that already has an id.
	ErrPersisted = errors.New("scan already persisted")
)

// Waveform is one signal of one channel together with its derived data.
type Waveform struct {
	Channel string
	Signal  string
	RateHz  float64
	Samples []float64
	Scalars map[string]float64
	Arrays  map[string][]float64
	Comment *string
}

type key struct {
	channel, signal string
}

// Scan is one measurement session.
type Scan struct {
	// ID is zero until the scan has been inserted or when it was not read
	// from the store.
	ID      int64
	Start   time.Time
	Numeric map[string]float64
	Text    map[string]string

	rates     map[string]float64
	waveforms map[key]*Waveform
}

// New returns an empty scan started at start.
func New(start time.Time) *Scan {
	return &Scan{
		Start:     start,
		Numeric:   map[string]float64{},
		Text:      map[string]string{},
		rates:     map[string]float64{},
		waveforms: map[key]*Waveform{},
	}
}

// AddScanData merges scan level metadata. A name present in both maps, or
// already held with the other type, is rejected with ErrShapeMismatch and
// nothing is merged. Re-adding a name with the same type overwrites it.
func (s *Scan) AddScanData(numeric map[string]float64, text map[string]string) error {
	for name := range numeric {
		if _, ok := text[name]; ok {
			return fmt.Errorf("%w: %q", ErrShapeMismatch, name)
		}
		if _, ok := s.Text[name]; ok {
			return fmt.Errorf("%w: %q already held as text", ErrShapeMismatch, name)
		}
	}
	for name := range text {
		if _, ok := s.Numeric[name]; ok {
			return fmt.Errorf("%w: %q already held as numeric", ErrShapeMismatch, name)
		}
	}
	maps.Copy(s.Numeric, numeric)
	maps.Copy(s.Text, text)
	return nil
}

// AddChannelData analyzes every signal of channel, except TimeSignal, and
// replaces whatever the scan held for that channel. If any signal fails
// analysis the scan is left unchanged.
func (s *Scan) AddChannelData(channel string, signals map[string][]float64, rateHz float64) error {
	added := make([]*Waveform, 0, len(signals))
	for _, name := range slices.Sorted(maps.Keys(signals)) {
		if name == TimeSignal {
			continue
		}
		samples := signals[name]
		res, err := analysis.Analyze(samples, rateHz)
		if err != nil {
			return fmt.Errorf("channel %s signal %s: %w", channel, name, err)
		}
		added = append(added, &Waveform{
			Channel: channel,
			Signal:  name,
			RateHz:  rateHz,
			Samples: slices.Clone(samples),
			Scalars: res.Scalars,
			Arrays:  res.Arrays,
		})
	}

	for k := range s.waveforms {
		if k.channel == channel {
			delete(s.waveforms, k)
		}
	}
	for _, w := range added {
		s.waveforms[key{channel, w.Signal}] = w
	}
	s.rates[channel] = rateHz
	return nil
}

// AddChannelValues is AddChannelData for loosely typed samples such as
// decoded JSON.
func (s *Scan) AddChannelValues(channel string, signals map[string][]any, rateHz float64) error {
	converted := make(map[string][]float64, len(signals))
	for name, values := range signals {
		if name == TimeSignal {
			continue
		}
		samples, err := analysis.Samples(values)
		if err != nil {
			return fmt.Errorf("channel %s signal %s: %w", channel, name, err)
		}
		converted[name] = samples
	}
	return s.AddChannelData(channel, converted, rateHz)
}

// SetComment attaches a free text comment to one waveform.
func (s *Scan) SetComment(channel, signal, comment string) error {
	w, ok := s.waveforms[key{channel, signal}]
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrUnknownWaveform, channel, signal)
	}
	w.Comment = &comment
	return nil
}

// Waveform returns the waveform for channel and signal.
func (s *Scan) Waveform(channel, signal string) (*Waveform, bool) {
	w, ok := s.waveforms[key{channel, signal}]
	return w, ok
}

// Waveforms returns all waveforms ordered by channel, then signal.
func (s *Scan) Waveforms() []*Waveform {
	out := slices.Collect(maps.Values(s.waveforms))
	slices.SortFunc(out, func(a, b *Waveform) int {
		if c := strings.Compare(a.Channel, b.Channel); c != 0 {
			return c
		}
		return strings.Compare(a.Signal, b.Signal)
	})
	return out
}

// Channels returns the channel names in sorted order.
func (s *Scan) Channels() []string {
	return slices.Sorted(maps.Keys(s.rates))
}

// SamplingRate returns the sampling rate recorded for channel.
func (s *Scan) SamplingRate(channel string) (float64, bool) {
	r, ok := s.rates[channel]
	return r, ok
}

// Insert writes the scan through g and records the assigned id.
func (s *Scan) Insert(ctx context.Context, g *store.Gateway) (int64, error) {
	if s.ID != 0 {
		return 0, fmt.Errorf("scan %d: %w", s.ID, ErrPersisted)
	}
	id, err := g.InsertScan(ctx, s)
	if err != nil {
		return 0, err
	}
	s.ID = id
	return id, nil
}

// Persist writes the scan row, then every waveform with its arrays and
// scalars, then the scan metadata. It runs inside the transaction opened by
// store.Gateway.InsertScan.
func (s *Scan) Persist(ctx context.Context, tx *store.Tx) (int64, error) {
	id, err := tx.AddScan(ctx, s.Start)
	if err != nil {
		return 0, err
	}

	for _, w := range s.Waveforms() {
		wid, err := tx.AddWaveform(ctx, store.WaveformRow{
			ScanID:  id,
			Channel: w.Channel,
			Signal:  w.Signal,
			RateHz:  w.RateHz,
			Comment: w.Comment,
		})
		if err != nil {
			return 0, err
		}

		arrays := []store.NamedArray{{Name: RawProcess, Data: w.Samples}}
		for _, name := range slices.Sorted(maps.Keys(w.Arrays)) {
			arrays = append(arrays, store.NamedArray{Name: name, Data: w.Arrays[name]})
		}
		if err := tx.AddArrays(ctx, wid, arrays); err != nil {
			return 0, err
		}

		scalars := make([]store.NamedValue, 0, len(w.Scalars))
		for _, name := range slices.Sorted(maps.Keys(w.Scalars)) {
			scalars = append(scalars, store.NamedValue{Name: name, Value: w.Scalars[name]})
		}
		if err := tx.AddScalars(ctx, wid, scalars); err != nil {
			return 0, err
		}
	}

	numeric := make([]store.NamedValue, 0, len(s.Numeric))
	for _, name := range slices.Sorted(maps.Keys(s.Numeric)) {
		numeric = append(numeric, store.NamedValue{Name: name, Value: s.Numeric[name]})
	}
	if err := tx.AddScanNumeric(ctx, id, numeric); err != nil {
		return 0, err
	}

	text := make([]store.NamedText, 0, len(s.Text))
	for _, name := range slices.Sorted(maps.Keys(s.Text)) {
		text = append(text, store.NamedText{Name: name, Value: s.Text[name]})
	}
	if err := tx.AddScanText(ctx, id, text); err != nil {
		return 0, err
	}
	return id, nil
}

// FromRecord rebuilds a scan from a folded scan record as returned by
// store.Gateway.QueryScans. Waveforms are not loaded. Prefixed metadata keys
// are copied back into Numeric and Text.
func FromRecord(rec fold.Record) (*Scan, error) {
	id, ok := rec.Int64(fold.KeyScanID)
	if !ok {
		return nil, fmt.Errorf("record has no %q", fold.KeyScanID)
	}
	start, ok := rec.Time(fold.KeyStartTime)
	if !ok {
		return nil, fmt.Errorf("record has no %q", fold.KeyStartTime)
	}

	s := New(start)
	s.ID = id
	for k, v := range rec {
		switch {
		case strings.HasPrefix(k, fold.NumericPrefix):
			if f, ok := v.(float64); ok {
				s.Numeric[strings.TrimPrefix(k, fold.NumericPrefix)] = f
			}
		case strings.HasPrefix(k, fold.TextPrefix):
			if t, ok := v.(string); ok {
				s.Text[strings.TrimPrefix(k, fold.TextPrefix)] = t
			}
		}
	}
	return s, nil
}
