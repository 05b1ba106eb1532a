package repo

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/shaiso/Artflow/internal/domain"
)

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullUUID возвращает nil для пустого UUID.
func nullUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	return id
}

// nullInt возвращает nil для нулевого int.
func nullInt(i int) *int {
	if i == 0 {
		return nil
	}
	return &i
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func marshalGraph(g domain.Graph) ([]byte, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("marshal graph: %w", err)
	}
	return data, nil
}

func unmarshalGraph(data []byte, g *domain.Graph) error {
	if data == nil {
		return nil
	}
	if err := json.Unmarshal(data, g); err != nil {
		return fmt.Errorf("unmarshal graph: %w", err)
	}
	return nil
}

// Page задаёт пагинацию списков.
type Page struct {
	Limit  int
	Offset int
}
