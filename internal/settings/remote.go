package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/raphaelgruber/askrumi/internal/client"
)

// ErrInvalidConfig marks configuration text that is not a JSON object.
var ErrInvalidConfig = errors.New("invalid configuration")

// ErrNoRemote is returned by sync operations on a store built without a remote.
var ErrNoRemote = errors.New("no remote configured")

// Remote is the server side of the behavior and keyword configuration.
type Remote interface {
	GetBehaviorSettings(ctx context.Context) (client.ConfigObject, error)
	SaveBehaviorSettings(ctx context.Context, cfg client.ConfigObject) error
	GetEmotionKeywords(ctx context.Context) (client.ConfigObject, error)
	SaveEmotionKeywords(ctx context.Context, cfg client.ConfigObject) error
}

// ParseConfig parses user-edited configuration text. Only JSON syntax is
// checked; the structure is the server's business.
func ParseConfig(raw []byte) (client.ConfigObject, error) {
	var cfg client.ConfigObject
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if cfg == nil {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrInvalidConfig)
	}
	return cfg, nil
}

// PullBehaviorConfig fetches the server's behavior configuration.
func (s *Store) PullBehaviorConfig(ctx context.Context) (client.ConfigObject, error) {
	if s.remote == nil {
		return nil, ErrNoRemote
	}
	cfg, err := s.remote.GetBehaviorSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("get behavior settings: %w", err)
	}
	return cfg, nil
}

// PushBehaviorConfig sends cfg to the server as-is.
func (s *Store) PushBehaviorConfig(ctx context.Context, cfg client.ConfigObject) error {
	if s.remote == nil {
		return ErrNoRemote
	}
	if err := s.remote.SaveBehaviorSettings(ctx, cfg); err != nil {
		return fmt.Errorf("save behavior settings: %w", err)
	}
	s.logger.Info("behavior settings pushed", "keys", len(cfg))
	return nil
}

// PushBehaviorJSON parses raw and pushes it. A parse failure sends nothing.
func (s *Store) PushBehaviorJSON(ctx context.Context, raw []byte) error {
	cfg, err := ParseConfig(raw)
	if err != nil {
		return err
	}
	return s.PushBehaviorConfig(ctx, cfg)
}

// PullEmotionKeywords fetches the emotion, theme and empathy keyword configuration.
func (s *Store) PullEmotionKeywords(ctx context.Context) (client.ConfigObject, error) {
	if s.remote == nil {
		return nil, ErrNoRemote
	}
	cfg, err := s.remote.GetEmotionKeywords(ctx)
	if err != nil {
		return nil, fmt.Errorf("get emotion keywords: %w", err)
	}
	return cfg, nil
}

// PushEmotionKeywordsJSON parses raw and pushes it. A parse failure sends nothing.
func (s *Store) PushEmotionKeywordsJSON(ctx context.Context, raw []byte) error {
	if s.remote == nil {
		return ErrNoRemote
	}
	cfg, err := ParseConfig(raw)
	if err != nil {
		return err
	}
	if err := s.remote.SaveEmotionKeywords(ctx, cfg); err != nil {
		return fmt.Errorf("save emotion keywords: %w", err)
	}
	s.logger.Info("emotion keywords pushed", "keys", len(cfg))
	return nil
}

// GenerationConfig returns the preference subset mirrored to the server.
func (p Preferences) GenerationConfig() client.ConfigObject {
	return client.ConfigObject{
		"conversation_history_depth": p.HistoryDepth,
		"max_tokens_wisdom":          p.MaxTokensWisdom,
		"max_tokens_empathetic":      p.MaxTokensEmpathetic,
		"max_tokens_casual":          p.MaxTokensCasual,
		"temperature":                p.Temperature,
		"max_quotes_retrieved":       p.MaxQuotesRetrieved,
	}
}

// PushGeneration sends the local generation parameters to the server.
// The server copy is overwritten; last writer wins.
func (s *Store) PushGeneration(ctx context.Context) error {
	return s.PushBehaviorConfig(ctx, s.Preferences().GenerationConfig())
}

// PullGeneration copies the server's generation parameters into the local
// preferences and saves them. Keys the server omits keep their local values.
func (s *Store) PullGeneration(ctx context.Context) (Preferences, error) {
	cfg, err := s.PullBehaviorConfig(ctx)
	if err != nil {
		return Preferences{}, err
	}

	err = s.Update(func(p *Preferences) {
		setInt(cfg, "conversation_history_depth", &p.HistoryDepth)
		setInt(cfg, "max_tokens_wisdom", &p.MaxTokensWisdom)
		setInt(cfg, "max_tokens_empathetic", &p.MaxTokensEmpathetic)
		setInt(cfg, "max_tokens_casual", &p.MaxTokensCasual)
		setInt(cfg, "max_quotes_retrieved", &p.MaxQuotesRetrieved)
		if v, ok := number(cfg["temperature"]); ok {
			p.Temperature = v
		}
	})
	if err != nil {
		return Preferences{}, err
	}
	return s.Preferences(), nil
}

func setInt(cfg client.ConfigObject, key string, dst *int) {
	if v, ok := number(cfg[key]); ok {
		*dst = int(v)
	}
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
