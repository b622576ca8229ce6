package crdt

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/codesync/internal/models"
)

// deliver применяет операции в любом порядке, откладывая неготовые
func deliver(text *Text, ops []models.Operation) {
	pending := append([]models.Operation(nil), ops...)
	for len(pending) > 0 {
		var rest []models.Operation
		for i := range pending {
			if !text.Ready(&pending[i]) {
				rest = append(rest, pending[i])
				continue
			}
			text.ApplyRemote(&pending[i])
		}
		if len(rest) == len(pending) {
			return
		}
		pending = rest
	}
}

type textInsert struct {
	content string
	pos     int
}

func newTestText(replica string) *Text {
	return NewText(NewLamportClockWithNodeID(replica))
}

func TestText_LocalInsert(t *testing.T) {
	tests := []struct {
		name     string
		inserts  []textInsert
		expected string
	}{
		{
			name: "append",
			inserts: []textInsert{
				{pos: 0, content: "hello"},
				{pos: 5, content: " world"},
			},
			expected: "hello world",
		},
		{
			name: "prepend",
			inserts: []textInsert{
				{pos: 0, content: "world"},
				{pos: 0, content: "hello "},
			},
			expected: "hello world",
		},
		{
			name: "middle",
			inserts: []textInsert{
				{pos: 0, content: "held"},
				{pos: 2, content: "llo wor"},
			},
			expected: "hello world",
		},
		{
			name: "unicode",
			inserts: []textInsert{
				{pos: 0, content: "привет"},
				{pos: 6, content: ", мир"},
			},
			expected: "привет, мир",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := newTestText("a")
			for _, ins := range tt.inserts {
				_, err := text.LocalInsert(ins.pos, ins.content)
				require.NoError(t, err)
			}

			assert.Equal(t, tt.expected, text.String())
			assert.Equal(t, len([]rune(tt.expected)), text.Len())
		})
	}
}

func TestText_LocalInsert_ReservesClockPerRune(t *testing.T) {
	text := newTestText("a")

	op, err := text.LocalInsert(0, "abc")
	require.NoError(t, err)
	assert.Equal(t, int64(1), op.ID.Clock)
	assert.Equal(t, int64(3), op.LastClock())

	next, err := text.LocalInsert(3, "d")
	require.NoError(t, err)
	assert.Equal(t, int64(4), next.ID.Clock)
	assert.Equal(t, models.OpID{Replica: "a", Clock: 3}, next.OriginLeft)
}

func TestText_LocalInsert_Errors(t *testing.T) {
	text := newTestText("a")
	_, err := text.LocalInsert(0, "abc")
	require.NoError(t, err)

	_, err = text.LocalInsert(4, "x")
	require.ErrorIs(t, err, ErrInvalidPosition)

	_, err = text.LocalInsert(-1, "x")
	require.ErrorIs(t, err, ErrInvalidPosition)

	_, err = text.LocalInsert(1, "")
	require.ErrorIs(t, err, ErrEmptyContent)

	assert.Equal(t, "abc", text.String(), "Failed inserts must not change state")
}

func TestText_LocalDelete(t *testing.T) {
	tests := []struct {
		name     string
		pos      int
		length   int
		expected string
		wantErr  error
	}{
		{name: "delete first", pos: 0, length: 1, expected: "ello"},
		{name: "delete middle", pos: 1, length: 3, expected: "ho"},
		{name: "delete all", pos: 0, length: 5, expected: ""},
		{name: "past end", pos: 3, length: 3, expected: "hello", wantErr: ErrInvalidRange},
		{name: "zero length", pos: 0, length: 0, expected: "hello", wantErr: ErrInvalidRange},
		{name: "negative position", pos: -1, length: 1, expected: "hello", wantErr: ErrInvalidRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := newTestText("a")
			_, err := text.LocalInsert(0, "hello")
			require.NoError(t, err)

			op, err := text.LocalDelete(tt.pos, tt.length)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Len(t, op.Targets, tt.length)
			}
			assert.Equal(t, tt.expected, text.String())
		})
	}
}

func TestText_LocalDelete_SkipsTombstones(t *testing.T) {
	text := newTestText("a")
	_, err := text.LocalInsert(0, "abcde")
	require.NoError(t, err)

	_, err = text.LocalDelete(1, 2) // "ade"
	require.NoError(t, err)

	op, err := text.LocalDelete(1, 1) // "ae"
	require.NoError(t, err)
	assert.Equal(t, []models.OpID{{Replica: "a", Clock: 4}}, op.Targets)
	assert.Equal(t, "ae", text.String())

	// Вставка после tombstone: правый сосед - следующий элемент полной последовательности
	ins, err := text.LocalInsert(1, "X")
	require.NoError(t, err)
	assert.Equal(t, models.OpID{Replica: "a", Clock: 1}, ins.OriginLeft)
	assert.Equal(t, models.OpID{Replica: "a", Clock: 2}, ins.OriginRight)
	assert.Equal(t, "aXe", text.String())
}

// Две реплики независимо вставляют в пустой документ на позицию 0
func TestText_ConcurrentInsertSamePosition(t *testing.T) {
	x := newTestText("x")
	y := newTestText("y")

	opX, err := x.LocalInsert(0, "A")
	require.NoError(t, err)
	opY, err := y.LocalInsert(0, "B")
	require.NoError(t, err)

	assert.True(t, x.ApplyRemote(&opY))
	assert.True(t, y.ApplyRemote(&opX))

	assert.Equal(t, x.String(), y.String())
	assert.Equal(t, "AB", x.String(), "Lower replica id sorts first")
}

func TestText_ConcurrentInsertsDoNotInterleave(t *testing.T) {
	a := newTestText("a")
	b := newTestText("b")

	opA, err := a.LocalInsert(0, "abc")
	require.NoError(t, err)
	opB, err := b.LocalInsert(0, "xyz")
	require.NoError(t, err)

	a.ApplyRemote(&opB)
	b.ApplyRemote(&opA)

	assert.Equal(t, "abcxyz", a.String())
	assert.Equal(t, "abcxyz", b.String())
}

// Две реплики конкурентно удаляют один и тот же символ
func TestText_ConcurrentDeleteSameCharacter(t *testing.T) {
	x := newTestText("x")
	y := newTestText("y")

	ins, err := x.LocalInsert(0, "ab")
	require.NoError(t, err)
	require.True(t, y.ApplyRemote(&ins))

	delX, err := x.LocalDelete(0, 1)
	require.NoError(t, err)
	delY, err := y.LocalDelete(0, 1)
	require.NoError(t, err)

	assert.False(t, x.ApplyRemote(&delY), "Second tombstone is a no-op")
	assert.False(t, y.ApplyRemote(&delX), "Second tombstone is a no-op")

	assert.Equal(t, "b", x.String())
	assert.Equal(t, "b", y.String())
	assert.Equal(t, 1, x.Len())
	assert.Equal(t, 1, y.Len())
}

func TestText_ApplyRemote_Idempotent(t *testing.T) {
	a := newTestText("a")
	b := newTestText("b")

	op, err := a.LocalInsert(0, "hello")
	require.NoError(t, err)

	assert.True(t, b.ApplyRemote(&op))
	assert.False(t, b.ApplyRemote(&op))
	assert.Equal(t, "hello", b.String())

	del, err := a.LocalDelete(0, 2)
	require.NoError(t, err)

	assert.True(t, b.ApplyRemote(&del))
	assert.False(t, b.ApplyRemote(&del))
	assert.Equal(t, "llo", b.String())
	assert.Equal(t, a.Elements(), b.Elements())
}

func TestText_Ready(t *testing.T) {
	a := newTestText("a")
	b := newTestText("b")

	first, err := a.LocalInsert(0, "ab")
	require.NoError(t, err)
	second, err := a.LocalInsert(1, "X")
	require.NoError(t, err)
	del, err := a.LocalDelete(0, 1)
	require.NoError(t, err)

	assert.True(t, b.Ready(&first))
	assert.False(t, b.Ready(&second), "Origins are unknown")
	assert.False(t, b.Ready(&del), "Target is unknown")
	assert.False(t, b.ApplyRemote(&second), "Unready operation is not applied")

	deliver(b, []models.Operation{del, second, first})

	assert.Equal(t, a.String(), b.String())
	assert.Equal(t, "Xb", b.String())
}

func TestText_Convergence_RandomDelivery(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	replicas := []*Text{newTestText("r1"), newTestText("r2"), newTestText("r3")}
	logs := make([][]models.Operation, len(replicas))

	// Общая основа
	base, err := replicas[0].LocalInsert(0, "shared base")
	require.NoError(t, err)
	logs[0] = append(logs[0], base)
	for _, r := range replicas[1:] {
		r.ApplyRemote(&base)
	}

	for round := 0; round < 200; round++ {
		i := rng.Intn(len(replicas))
		r := replicas[i]

		switch action := rng.Intn(4); {
		case action < 2:
			content := string(rune('a' + rng.Intn(26)))
			if rng.Intn(3) == 0 {
				content += "xy"
			}
			op, err := r.LocalInsert(rng.Intn(r.Len()+1), content)
			require.NoError(t, err)
			logs[i] = append(logs[i], op)
		case action == 2 && r.Len() > 0:
			pos := rng.Intn(r.Len())
			length := 1 + rng.Intn(min(3, r.Len()-pos))
			op, err := r.LocalDelete(pos, length)
			require.NoError(t, err)
			logs[i] = append(logs[i], op)
		default:
			// Частичная синхронизация с другой репликой
			from := rng.Intn(len(replicas))
			deliver(r, logs[from])
		}
	}

	var all []models.Operation
	for _, log := range logs {
		all = append(all, log...)
	}

	for _, r := range replicas {
		shuffled := append([]models.Operation(nil), all...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		deliver(r, shuffled)
	}

	// Свежая реплика, получившая все операции в случайном порядке
	fresh := newTestText("r4")
	shuffled := append([]models.Operation(nil), all...)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	deliver(fresh, shuffled)

	want := replicas[0].Elements()
	for _, r := range append(replicas[1:], fresh) {
		if diff := cmp.Diff(want, r.Elements()); diff != "" {
			t.Fatalf("replicas diverged (-want +got):\n%s", diff)
		}
	}
	assert.Equal(t, replicas[0].String(), fresh.String())
}

func BenchmarkText_LocalInsert(b *testing.B) {
	text := newTestText("a")
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_, _ = text.LocalInsert(text.Len(), "x")
	}
}
