package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"sort"

	"github.com/google/uuid"
	"github.com/shaiso/Conduit/internal/artifacts"
	"github.com/shaiso/Conduit/internal/domain"
)

// GenerateKey вычисляет cache key шага.
//
// В ключ входят (в этом порядке, каждое поле с префиксом длины):
//  1. ID и путь artifact store
//  2. ID проекта
//  3. Source шага
//  4. Параметры шага (канонический JSON, ключи отсортированы)
//  5. Отсортированные пары имя входа → ID артефакта
//  6. Отсортированные выходы с materializer и data type
//  7. Caching parameters (канонический JSON)
//
// EnableCache в ключ не входит: флаг решает, смотреть ли в кэш вообще.
//
// Имя шага и upstream_steps в ключ тоже не входят. Два разных шага с одним
// source, параметрами, входами и выходами получают один ключ и делят
// кэшированные выходы, в том числе между pipelines одного проекта.
// Порядок выполнения влияет на ключ только через ID входных артефактов.
// Функция чистая: без I/O, одинаковые аргументы дают одинаковый ключ.
func GenerateKey(config domain.StepConfig, inputs map[string]uuid.UUID, store artifacts.Identity, projectID uuid.UUID) (string, error) {
	h := sha256.New()

	writeField(h, store.ID[:])
	writeField(h, []byte(store.Path))
	writeField(h, projectID[:])
	writeField(h, []byte(config.Source))

	params, err := canonicalJSON(config.Parameters)
	if err != nil {
		return "", fmt.Errorf("encode parameters: %w", err)
	}
	writeField(h, params)

	names := make([]string, 0, len(inputs))
	for name := range inputs {
		names = append(names, name)
	}
	sort.Strings(names)

	writeCount(h, len(names))
	for _, name := range names {
		id := inputs[name]
		writeField(h, []byte(name))
		writeField(h, id[:])
	}

	outputs := config.OutputNames()
	writeCount(h, len(outputs))
	for _, name := range outputs {
		out := config.Outputs[name]
		writeField(h, []byte(name))
		writeField(h, []byte(out.Materializer))
		writeField(h, []byte(out.DataType))
	}

	caching, err := canonicalJSON(config.CachingParameters)
	if err != nil {
		return "", fmt.Errorf("encode caching parameters: %w", err)
	}
	writeField(h, caching)

	return hex.EncodeToString(h.Sum(nil)), nil
}

// writeField пишет поле с 8-байтовым префиксом длины (big-endian),
// чтобы соседние поля не склеивались неоднозначно.
func writeField(h hash.Hash, data []byte) {
	var prefix [8]byte
	binary.BigEndian.PutUint64(prefix[:], uint64(len(data)))
	h.Write(prefix[:])
	h.Write(data)
}

func writeCount(h hash.Hash, n int) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(n))
	writeField(h, buf[:])
}

// canonicalJSON кодирует значение в JSON. encoding/json сортирует ключи map,
// поэтому результат стабилен. Пустая map и nil дают одно и то же.
func canonicalJSON(v map[string]any) ([]byte, error) {
	if len(v) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(v)
}
