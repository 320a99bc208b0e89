package worker

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
)

// outputTailSize — сколько байт вывода процесса уходит в ответ.
const outputTailSize = 4096

// CommandRunner выполняет команду и возвращает хвост вывода и код выхода.
type CommandRunner interface {
	Run(ctx context.Context, args []string, env []string) (output string, exitCode int, err error)
}

// ExecRunner выполняет команды через os/exec.
type ExecRunner struct{}

// Run запускает процесс и ждёт его завершения.
// Ненулевой код выхода возвращается вместе с ошибкой.
func (ExecRunner) Run(ctx context.Context, args []string, env []string) (string, int, error) {
	if len(args) == 0 {
		return "", -1, fmt.Errorf("%w: empty command", ErrInvalidEntrypoint)
	}

	tail := newTailBuffer(outputTailSize)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Env = env
	cmd.Stdout = tail
	cmd.Stderr = tail

	err := cmd.Run()
	if err == nil {
		return tail.String(), 0, nil
	}

	if ctx.Err() != nil {
		return tail.String(), -1, fmt.Errorf("%w: %v", ErrExecutionTimeout, ctx.Err())
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return tail.String(), exitErr.ExitCode(), err
	}
	return tail.String(), -1, err
}

// tailBuffer хранит последние size байт записанного.
type tailBuffer struct {
	mu   sync.Mutex
	size int
	buf  []byte
}

func newTailBuffer(size int) *tailBuffer {
	return &tailBuffer{size: size}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.size; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
