package cli

import (
	"context"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/iudanet/codesync/internal/client/replica"
	"github.com/iudanet/codesync/internal/document"
	"github.com/iudanet/codesync/internal/models"
)

// watcher подписки команды watch. Текстовые документы файлов подписываются
// по мере появления файлов в дереве.
type watcher struct {
	c      *Cli
	unsubs []func()
	seen   map[string]bool
	mu     sync.Mutex
}

func (c *Cli) runWatch(ctx context.Context, _ []string) error {
	w := &watcher{c: c, seen: make(map[string]bool)}
	defer w.close()

	w.add(c.session.OnStatusChange(w.onStatus))
	w.add(c.session.OnAwarenessChange(w.onAwareness))
	w.add(c.session.FileTree().Handle().Subscribe(w.onTree))
	w.subscribeFiles()

	status, _ := c.session.Status()
	c.io.Printf("Watching project %s (%s). Press Ctrl+C to stop.\n",
		c.session.ProjectID(), c.colors.status.Sprint(status))

	<-ctx.Done()
	return nil
}

func (w *watcher) add(unsubscribe func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.unsubs = append(w.unsubs, unsubscribe)
}

func (w *watcher) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, unsubscribe := range w.unsubs {
		unsubscribe()
	}
	w.unsubs = nil
}

// subscribeFiles подписывается на тексты файлов, еще не отслеживаемых
func (w *watcher) subscribeFiles() {
	for _, node := range w.c.session.FileTree().Nodes() {
		if node.IsFolder() {
			continue
		}
		id := node.ID.String()

		w.mu.Lock()
		if w.seen[id] {
			w.mu.Unlock()
			continue
		}
		w.seen[id] = true
		w.mu.Unlock()

		w.add(w.c.session.Document(id).Subscribe(w.onText))
	}
}

func (w *watcher) onStatus(ev replica.StatusEvent) {
	line := fmt.Sprintf("[status] %s", ev.Status)
	if ev.Err != nil {
		w.c.io.Println(w.c.colors.warn.Sprintf("%s: %v", line, ev.Err))
		return
	}
	w.c.io.Println(w.c.colors.status.Sprint(line))
}

func (w *watcher) onAwareness(ev replica.AwarenessEvent) {
	p := ev.Presence
	if p.Left {
		w.c.io.Println(w.c.colors.peer.Sprintf("[presence] %s left", displayName(p)))
		return
	}
	w.c.io.Println(w.c.colors.peer.Sprintf("[presence] %s %s", displayName(p), w.c.cursor(p.Cursor)))
}

func (w *watcher) onTree(ev document.Event) {
	for _, op := range ev.Ops {
		if op.Node == nil {
			continue
		}
		w.print(ev.Local, w.describeNode(op))
	}
	w.subscribeFiles()
}

func (w *watcher) onText(ev document.Event) {
	path := w.c.pathOf(ev.DocumentID)
	for _, op := range ev.Ops {
		switch op.Type {
		case models.OpInsert:
			w.print(ev.Local, fmt.Sprintf("%s: +%d %q", path, utf8.RuneCountInString(op.Content), op.Content))
		case models.OpDelete:
			w.print(ev.Local, fmt.Sprintf("%s: -%d", path, len(op.Targets)))
		}
	}
}

func (w *watcher) describeNode(op models.Operation) string {
	node := op.Node
	name := node.Name
	if node.Kind == models.NodeFolder {
		name += "/"
	}

	if node.Deleted {
		return "removed " + name
	}
	if op.ID == op.Key {
		return "created " + name
	}
	if path, err := w.c.session.FileTree().Path(op.Key); err == nil {
		return "updated " + path
	}
	return "updated " + name
}

func (w *watcher) print(local bool, line string) {
	if local {
		w.c.io.Println(w.c.colors.local.Sprint("[local]  " + line))
		return
	}
	w.c.io.Println(w.c.colors.remote.Sprint("[remote] " + line))
}
