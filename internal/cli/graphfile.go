package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/shaiso/Artflow/internal/domain"
	"github.com/shaiso/Artflow/internal/engine"
)

// stdin подменяется в тестах.
var stdin io.Reader = os.Stdin

// readGraph читает граф из файла (JSON или YAML). "-" означает stdin.
func readGraph(path string) (*domain.Graph, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read graph: %w", err)
	}

	return engine.ParseAndValidate(data)
}

// readGraphJSON читает и валидирует граф, возвращая его в JSON для API.
func readGraphJSON(path string) (json.RawMessage, error) {
	g, err := readGraph(path)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("encode graph: %w", err)
	}
	return data, nil
}

// graphFileArg выбирает файл графа из позиционного аргумента или флага --file.
func graphFileArg(flag string, args []string) (string, error) {
	switch {
	case len(args) > 0 && flag != "":
		return "", errors.New("graph file given both as argument and --file")
	case len(args) > 0:
		return args[0], nil
	case flag != "":
		return flag, nil
	}
	return "", errors.New("graph file is required: pass FILE or --file")
}
