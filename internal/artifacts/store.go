package artifacts

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// Ошибки artifact store.
var (
	// ErrArtifactExists — по URI уже что-то лежит (коллизия имён или повторный запуск).
	ErrArtifactExists = errors.New("artifact uri already exists")

	// ErrOutsideRoot — URI не принадлежит корню artifact store.
	ErrOutsideRoot = errors.New("artifact uri outside of store root")

	// ErrNotFound — файла артефакта не существует.
	ErrNotFound = errors.New("artifact file not found")
)

// DataFile — имя файла с содержимым артефакта внутри его URI.
const DataFile = "data"

// Identity — идентичность artifact store. Входит в cache key:
// одинаковые шаги на разных хранилищах кэшируются раздельно.
type Identity struct {
	ID   uuid.UUID `json:"id"`
	Path string    `json:"path"`
}

// Store — хранилище артефактов.
//
// URI артефакта — это директория (или префикс объектов), внутри которой
// шаг пишет файлы выхода.
type Store interface {
	// Identity возвращает ID и корневой путь хранилища.
	Identity() Identity

	// Exists проверяет, занят ли URI.
	Exists(ctx context.Context, uri string) (bool, error)

	// MakeDirs создаёт URI. Возвращает ErrArtifactExists, если URI уже занят.
	MakeDirs(ctx context.Context, uri string) error

	// RemoveAll удаляет URI со всем содержимым. Отсутствующий URI — не ошибка.
	RemoveAll(ctx context.Context, uri string) error

	// WriteFile записывает файл name внутри URI.
	WriteFile(ctx context.Context, uri, name string, data []byte) error

	// ReadFile читает файл name внутри URI. ErrNotFound, если файла нет.
	ReadFile(ctx context.Context, uri, name string) ([]byte, error)
}

// GenerateURI строит детерминированный URI выхода:
// <root>/<step_name>/<output_name>/<step_run_id>.
func GenerateURI(root, stepName, outputName string, stepRunID uuid.UUID) string {
	return strings.TrimRight(root, "/") + "/" + stepName + "/" + outputName + "/" + stepRunID.String()
}

// IdentityFor возвращает Identity для корня. Пустой id выводится из пути (UUIDv5),
// поэтому одно и то же хранилище получает один ID во всех процессах.
func IdentityFor(id, root string) (Identity, error) {
	if id == "" {
		return Identity{ID: uuid.NewSHA1(uuid.NameSpaceURL, []byte(root)), Path: root}, nil
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return Identity{}, err
	}
	return Identity{ID: parsed, Path: root}, nil
}
