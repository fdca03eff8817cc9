// Package render draws environment frames into a terminal.
package render

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"

	"walkerga/internal/scape"
)

// ErrClosed is returned by Draw once the user quit or the terminal was
// closed.
var ErrClosed = errors.New("terminal renderer closed")

const (
	defaultCellsPerMeterX = 6.0
	defaultCellsPerMeterY = 3.0
)

var (
	groundStyle = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	bodyStyle   = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	statusStyle = tcell.StyleDefault.Foreground(tcell.ColorWhite).Reverse(true)
)

type Options struct {
	// FrameDelay is slept after every drawn frame.
	FrameDelay     time.Duration
	CellsPerMeterX float64
	CellsPerMeterY float64
}

// Terminal is a scape.Renderer backed by a tcell screen. Esc, q or Ctrl-C
// close it.
type Terminal struct {
	screen tcell.Screen
	opts   Options

	mu     sync.Mutex
	closed bool
	quit   chan struct{}
	once   sync.Once
}

func NewTerminal(opts Options) (*Terminal, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return NewTerminalWithScreen(screen, opts)
}

// NewTerminalWithScreen initialises screen and takes ownership of it.
func NewTerminalWithScreen(screen tcell.Screen, opts Options) (*Terminal, error) {
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("init screen: %w", err)
	}
	if opts.CellsPerMeterX <= 0 {
		opts.CellsPerMeterX = defaultCellsPerMeterX
	}
	if opts.CellsPerMeterY <= 0 {
		opts.CellsPerMeterY = defaultCellsPerMeterY
	}
	screen.HideCursor()
	screen.Clear()

	t := &Terminal{screen: screen, opts: opts, quit: make(chan struct{})}
	go t.pollEvents()
	return t, nil
}

func (t *Terminal) pollEvents() {
	for {
		ev := t.screen.PollEvent()
		if ev == nil {
			return
		}
		switch ev := ev.(type) {
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC || ev.Rune() == 'q' {
				t.requestQuit()
				return
			}
		case *tcell.EventResize:
			t.screen.Sync()
		}
	}
}

func (t *Terminal) requestQuit() {
	t.once.Do(func() { close(t.quit) })
}

// Done is closed when the user asked to quit.
func (t *Terminal) Done() <-chan struct{} {
	return t.quit
}

func (t *Terminal) Draw(frame scape.Frame) error {
	select {
	case <-t.quit:
		return ErrClosed
	default:
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	t.drawFrame(frame)
	t.mu.Unlock()

	if t.opts.FrameDelay > 0 {
		select {
		case <-t.quit:
			return ErrClosed
		case <-time.After(t.opts.FrameDelay):
		}
	}
	return nil
}

func (t *Terminal) drawFrame(frame scape.Frame) {
	t.screen.Clear()
	width, height := t.screen.Size()
	if width <= 0 || height <= 1 {
		t.screen.Show()
		return
	}
	view := viewport{
		originX: frame.CameraX,
		scaleX:  t.opts.CellsPerMeterX,
		scaleY:  t.opts.CellsPerMeterY,
		width:   width,
		height:  height - 1,
	}

	for i := 1; i < len(frame.Ground); i++ {
		t.line(view, frame.Ground[i-1], frame.Ground[i], '#', groundStyle)
	}
	for _, body := range frame.Bodies {
		t.line(view, body.From, body.To, '*', bodyStyle)
	}

	status := fmt.Sprintf(" %s  tick %d  reward %+.3f  return %+.2f  [q] quit ",
		frame.Environment, frame.Tick, frame.Reward, frame.Return)
	for x, r := range []rune(status) {
		if x >= width {
			break
		}
		t.screen.SetContent(x, height-1, r, nil, statusStyle)
	}
	t.screen.Show()
}

func (t *Terminal) line(view viewport, from, to scape.Point, r rune, style tcell.Style) {
	x0, y0 := view.project(from)
	x1, y1 := view.project(to)
	steps := int(math.Max(math.Abs(x1-x0), math.Abs(y1-y0)))
	if steps == 0 {
		steps = 1
	}
	for i := 0; i <= steps; i++ {
		f := float64(i) / float64(steps)
		x := int(math.Round(x0 + (x1-x0)*f))
		y := int(math.Round(y0 + (y1-y0)*f))
		if x < 0 || y < 0 || x >= view.width || y >= view.height {
			continue
		}
		t.screen.SetContent(x, y, r, nil, style)
	}
}

func (t *Terminal) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	t.requestQuit()
	t.screen.Fini()
	return nil
}

// viewport maps world coordinates to cells. The camera sits a quarter of
// the width from the left edge and the world origin two rows above the
// status line.
type viewport struct {
	originX float64
	scaleX  float64
	scaleY  float64
	width   int
	height  int
}

func (v viewport) project(p scape.Point) (float64, float64) {
	x := (p.X-v.originX)*v.scaleX + float64(v.width)/4
	y := float64(v.height-2) - p.Y*v.scaleY
	return x, y
}
