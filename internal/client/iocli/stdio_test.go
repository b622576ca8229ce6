package iocli

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Проверяем что NewStdio возвращает валидный объект
func TestNewStdio(t *testing.T) {
	stdio := NewStdio()
	assert.NotNil(t, stdio)
}

func TestPrintlnAndPrintf(t *testing.T) {
	var out bytes.Buffer
	stdio := NewStream(strings.NewReader(""), &out)

	stdio.Println("hello", "world")
	stdio.Printf("test %d %s", 1, "abc")

	assert.Equal(t, "hello world\ntest 1 abc", out.String())
}

func TestReadInput(t *testing.T) {
	var out bytes.Buffer
	stdio := NewStream(strings.NewReader("first line\r\nsecond\nlast"), &out)

	// Буфер общий для всех вызовов: строки не теряются между чтениями
	line, err := stdio.ReadInput("> ")
	require.NoError(t, err)
	assert.Equal(t, "first line", line)

	line, err = stdio.ReadInput("")
	require.NoError(t, err)
	assert.Equal(t, "second", line)

	line, err = stdio.ReadInput("")
	require.NoError(t, err)
	assert.Equal(t, "last", line)

	_, err = stdio.ReadInput("")
	require.ErrorIs(t, err, io.EOF)

	assert.Equal(t, "> ", out.String())
}

func TestReadInputFromPipe(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	go func() {
		_, _ = w.Write([]byte("user input\n"))
		_ = w.Close()
	}()

	stdio := NewStream(r, io.Discard)
	result, err := stdio.ReadInput("Prompt: ")
	require.NoError(t, err)
	assert.Equal(t, "user input", result)

	// pipe не терминал
	assert.False(t, stdio.Interactive())
}
