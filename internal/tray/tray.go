// Package tray provides system tray functionality using getlantern/systray.
package tray

import (
	"encoding/binary"
	"sync"

	"github.com/getlantern/systray"
)

// MenuItem represents a menu item
type MenuItem struct {
	ID       int
	Title    string
	Callback func()
	disabled bool
	item     *systray.MenuItem
}

// Tray manages the system tray icon and menu
type Tray struct {
	mu      sync.Mutex
	title   string
	tooltip string
	items   []*MenuItem
	ready   bool
	quitCh  chan struct{}
	onExit  func()
}

// New creates a new system tray. onExit runs after the tray has been torn down.
func New(title, tooltip string, onExit func()) *Tray {
	return &Tray{
		title:   title,
		tooltip: tooltip,
		quitCh:  make(chan struct{}),
		onExit:  onExit,
	}
}

// AddMenuItem adds a menu item to the tray. Items must be added before Run.
func (t *Tray) AddMenuItem(title string, callback func()) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := len(t.items)
	t.items = append(t.items, &MenuItem{
		ID:       id,
		Title:    title,
		Callback: callback,
	})
	return id
}

// AddSeparator adds a separator to the menu
func (t *Tray) AddSeparator() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = append(t.items, nil) // nil indicates separator
}

// SetItemEnabled enables or greys out a menu item
func (t *Tray) SetItemEnabled(id int, enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id < 0 || id >= len(t.items) || t.items[id] == nil {
		return
	}
	mi := t.items[id]
	mi.disabled = !enabled
	if mi.item == nil {
		return
	}
	if enabled {
		mi.item.Enable()
	} else {
		mi.item.Disable()
	}
}

// SetStatus replaces the tooltip, e.g. with the running script's progress
func (t *Tray) SetStatus(status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tooltip = status
	if t.ready {
		systray.SetTooltip(status)
	}
}

// Run starts the tray event loop (blocks). On macOS it must be called from
// the main goroutine.
func (t *Tray) Run() {
	systray.Run(t.setupMenu, t.exit)
}

func (t *Tray) exit() {
	close(t.quitCh)
	if t.onExit != nil {
		t.onExit()
	}
}

// setupMenu is called when systray is ready
func (t *Tray) setupMenu() {
	t.mu.Lock()
	defer t.mu.Unlock()

	systray.SetTitle(t.title)
	systray.SetTooltip(t.tooltip)
	systray.SetIcon(playIcon())
	t.ready = true

	for _, menuItem := range t.items {
		if menuItem == nil {
			systray.AddSeparator()
			continue
		}
		item := systray.AddMenuItem(menuItem.Title, "")
		menuItem.item = item
		if menuItem.disabled {
			item.Disable()
		}

		if menuItem.Callback != nil {
			go func(mi *MenuItem) {
				for {
					select {
					case <-mi.item.ClickedCh:
						mi.Callback()
					case <-t.quitCh:
						return
					}
				}
			}(menuItem)
		}
	}
}

// Stop stops the tray
func (t *Tray) Stop() {
	systray.Quit()
}

const iconSize = 16

// playIcon draws a 16x16 32-bit ICO with a green play triangle
func playIcon() []byte {
	const (
		headerLen = 6 + 16
		dibLen    = 40
		pixelLen  = iconSize * iconSize * 4
		maskLen   = iconSize * 4 // 1bpp rows padded to 32 bits
	)
	icon := make([]byte, headerLen+dibLen+pixelLen+maskLen)
	le := binary.LittleEndian

	// ICONDIR + one ICONDIRENTRY
	le.PutUint16(icon[2:], 1) // type: icon
	le.PutUint16(icon[4:], 1) // count
	icon[6], icon[7] = iconSize, iconSize
	le.PutUint16(icon[10:], 1)  // planes
	le.PutUint16(icon[12:], 32) // bpp
	le.PutUint32(icon[14:], dibLen+pixelLen+maskLen)
	le.PutUint32(icon[18:], headerLen)

	// BITMAPINFOHEADER; height is doubled to cover the AND mask
	dib := icon[headerLen:]
	le.PutUint32(dib[0:], dibLen)
	le.PutUint32(dib[4:], iconSize)
	le.PutUint32(dib[8:], iconSize*2)
	le.PutUint16(dib[12:], 1)
	le.PutUint16(dib[14:], 32)
	le.PutUint32(dib[20:], pixelLen)

	// Rows are stored bottom-up in BGRA; the mask stays zero (opaque) and
	// alpha decides visibility.
	pixels := dib[dibLen:]
	for y := 0; y < iconSize; y++ {
		for x := 0; x < iconSize; x++ {
			if !inTriangle(x, y) {
				continue
			}
			off := ((iconSize-1-y)*iconSize + x) * 4
			pixels[off+0] = 0x40 // B
			pixels[off+1] = 0xB0 // G
			pixels[off+2] = 0x30 // R
			pixels[off+3] = 0xFF // A
		}
	}
	return icon
}

// inTriangle reports whether (x, y) lies in a right-pointing triangle with
// its tip at the middle of the right edge.
func inTriangle(x, y int) bool {
	const left, top, bottom, tip = 3, 2, 13, 13
	if x < left || y < top || y > bottom {
		return false
	}
	mid := (top + bottom) / 2
	half := (bottom - top) / 2
	dy := y - mid
	if dy < 0 {
		dy = -dy
	}
	// width shrinks linearly from the left edge toward the tip
	return x-left <= (tip-left)*(half-dy)/half
}
