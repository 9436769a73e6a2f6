package match

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// #region task-definition

// TaskDefinition describes one known multi-step task for indexing.
type TaskDefinition struct {
	TaskID string          `json:"task_id"`
	Steps  []ReferenceStep `json:"steps"`
}

// ReferenceStep is one step of a task, with the text that observations are
// matched against.
type ReferenceStep struct {
	Index int    `json:"index"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// LoadTaskDefinition reads a task definition from a JSON file.
func LoadTaskDefinition(path string) (TaskDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TaskDefinition{}, fmt.Errorf("match: read task file: %w", err)
	}
	var task TaskDefinition
	if err := json.Unmarshal(data, &task); err != nil {
		return TaskDefinition{}, fmt.Errorf("match: parse task file %s: %w", path, err)
	}
	if task.TaskID == "" {
		return TaskDefinition{}, fmt.Errorf("match: task file %s has no task_id", path)
	}
	if len(task.Steps) == 0 {
		return TaskDefinition{}, fmt.Errorf("match: task %s has no steps", task.TaskID)
	}
	return task, nil
}

// #endregion task-definition

// #region ensure-collection

// EnsureCollection creates the reference-step collection if it does not exist.
func (m *Matcher) EnsureCollection(ctx context.Context) error {
	exists, err := m.client.CollectionExists(ctx, m.cfg.Collection)
	if err != nil {
		return fmt.Errorf("match: check collection %s: %w", m.cfg.Collection, err)
	}
	if exists {
		return nil
	}
	err = m.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: m.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(m.embedder.Dimension()),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("match: create collection %s: %w", m.cfg.Collection, err)
	}
	return nil
}

// #endregion ensure-collection

// #region index-task

// IndexTask embeds and upserts a task's reference steps, so the matcher is
// self-contained after startup.
func (m *Matcher) IndexTask(ctx context.Context, task TaskDefinition) error {
	texts := make([]string, len(task.Steps))
	for i, step := range task.Steps {
		text := step.Text
		if text == "" {
			text = step.Title
		}
		texts[i] = text
	}

	vectors, err := m.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("match: embed steps for %s: %w", task.TaskID, err)
	}
	if len(vectors) != len(task.Steps) {
		return fmt.Errorf("match: embedded %d vectors for %d steps", len(vectors), len(task.Steps))
	}

	points := make([]*qdrant.PointStruct, len(task.Steps))
	for i, step := range task.Steps {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(uuid.New().String()),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: map[string]*qdrant.Value{
				"task_id":    {Kind: &qdrant.Value_StringValue{StringValue: task.TaskID}},
				"step_index": {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(step.Index)}},
				"title":      {Kind: &qdrant.Value_StringValue{StringValue: step.Title}},
			},
		}
	}

	_, err = m.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: m.cfg.Collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("match: upsert steps for %s: %w", task.TaskID, err)
	}
	return nil
}

// #endregion index-task
