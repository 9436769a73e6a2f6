// Package match resolves cleaned observation text against the reference steps
// of the known tasks. Reference steps live in a Qdrant collection; queries are
// embedded locally and searched by cosine similarity.
package match

import (
	"context"
	"fmt"
	"sort"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"

	"github.com/kestrelworks/steptrace/internal/policy"
)

// #region config

// Config holds the matcher connection and search parameters.
type Config struct {
	Host           string // Qdrant host, default "localhost"
	Port           int    // Qdrant gRPC port, default 6334
	UseTLS         bool
	Collection     string // reference-step collection, default "steptrace_steps"
	TopK           int    // candidates returned per observation, default 3
	MaxMessageSize int    // gRPC message cap, default 4 MiB
}

// DefaultConfig returns the documented matcher defaults.
func DefaultConfig() Config {
	return Config{
		Host:           "localhost",
		Port:           6334,
		Collection:     "steptrace_steps",
		TopK:           3,
		MaxMessageSize: 4 << 20,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Host == "" {
		c.Host = def.Host
	}
	if c.Port == 0 {
		c.Port = def.Port
	}
	if c.Collection == "" {
		c.Collection = def.Collection
	}
	if c.TopK <= 0 {
		c.TopK = def.TopK
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = def.MaxMessageSize
	}
}

// #endregion config

// #region matcher

// Matcher searches the reference-step collection.
type Matcher struct {
	client   *qdrant.Client
	embedder Embedder
	cfg      Config
}

// New connects to Qdrant and returns a Matcher.
func New(cfg Config, embedder Embedder) (*Matcher, error) {
	cfg.applyDefaults()
	if embedder == nil {
		return nil, fmt.Errorf("match: embedder is required")
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		UseTLS: cfg.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(cfg.MaxMessageSize),
				grpc.MaxCallSendMsgSize(cfg.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("match: connect qdrant %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	return &Matcher{client: client, embedder: embedder, cfg: cfg}, nil
}

// Close shuts down the Qdrant connection.
func (m *Matcher) Close() error {
	return m.client.Close()
}

// #endregion matcher

// #region match

// Match embeds the text and returns the best reference-step candidates,
// sorted by similarity descending. An empty result is a valid no-match.
func (m *Matcher) Match(ctx context.Context, text string) ([]policy.Candidate, error) {
	vector, err := m.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("match: embed observation: %w", err)
	}

	points, err := m.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: m.cfg.Collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(m.cfg.TopK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("match: query %s: %w", m.cfg.Collection, err)
	}

	candidates := make([]policy.Candidate, 0, len(points))
	for _, p := range points {
		cand := policy.Candidate{Similarity: clampScore(p.Score)}
		for key, value := range p.Payload {
			switch key {
			case "task_id":
				cand.TaskID = value.GetStringValue()
			case "step_index":
				cand.StepIndex = int(value.GetIntegerValue())
			case "title":
				cand.Title = value.GetStringValue()
			}
		}
		candidates = append(candidates, cand)
	}
	// Qdrant returns ranked results already; keep the ordering explicit.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})
	return candidates, nil
}

func clampScore(score float32) float32 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// #endregion match
