package ui

import (
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/pixelmaw/gbcore/internal/emu"
)

const sampleRate = 44100

// App is the ebiten presentation shell around a Machine: it samples the
// keyboard into joypad state, paces StepFrame calls to ~59.7275Hz, and
// streams the APU's stereo output through an ebiten audio Player.
type App struct {
	cfg Config
	m   *emu.Machine

	tex    *ebiten.Image
	overlay *ebiten.Image

	paused bool
	fast   bool

	lastTime time.Time
	frameAcc float64

	audioMuted  bool
	audioCtx    *audio.Context
	audioPlayer *audio.Player
	audioSrc    *apuStream

	showStats bool
	toastMsg  string
	toastUntil time.Time
}

// NewApp constructs an App around m, applying cfg defaults and sizing the
// window to cfg.Scale.
func NewApp(cfg Config, m *emu.Machine) *App {
	cfg = loadSettings(cfg)
	cfg.Defaults()
	ebiten.SetWindowTitle(windowTitle(cfg, m))
	ebiten.SetWindowSize(160*cfg.Scale, 144*cfg.Scale)

	a := &App{cfg: cfg, m: m}
	a.lastTime = time.Now()
	a.audioCtx = audio.NewContext(sampleRate)

	if cfg.ShellOverlay && cfg.ShellImage != "" {
		if f, err := os.Open(cfg.ShellImage); err == nil {
			defer f.Close()
			if img, err := png.Decode(f); err == nil {
				ov := ebiten.NewImageFromImage(img)
				a.overlay = ov
			}
		}
	}
	return a
}

func windowTitle(cfg Config, m *emu.Machine) string {
	if m != nil && m.ROMPath() != "" {
		if t := m.ROMTitle(); t != "" {
			return cfg.Title + " - [" + t + "]"
		}
	}
	return cfg.Title
}

// Run hands control to ebiten's game loop.
func (a *App) Run() error { return ebiten.RunGame(a) }

// SaveSettings persists the current Config to the user's config directory.
func (a *App) SaveSettings() {
	b, err := json.MarshalIndent(a.cfg, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(settingsPath(), b, 0644)
}

func (a *App) Update() error {
	if a.audioPlayer == nil {
		a.audioMuted = true
		a.audioSrc = &apuStream{m: a.m, mono: !a.cfg.AudioStereo, muted: &a.audioMuted, lowLatency: a.cfg.AudioLowLatency}
		if p, err := a.audioCtx.NewPlayer(a.audioSrc); err == nil {
			a.audioPlayer = p
			a.applyPlayerBufferSize()
			a.audioPlayer.Play()
		}
	}

	var btn emu.Buttons
	if ebiten.IsKeyPressed(ebiten.KeyRight) {
		btn.Right = true
	}
	if ebiten.IsKeyPressed(ebiten.KeyLeft) {
		btn.Left = true
	}
	if ebiten.IsKeyPressed(ebiten.KeyUp) {
		btn.Up = true
	}
	if ebiten.IsKeyPressed(ebiten.KeyDown) {
		btn.Down = true
	}
	if ebiten.IsKeyPressed(ebiten.KeyZ) {
		btn.A = true
	}
	if ebiten.IsKeyPressed(ebiten.KeyX) {
		btn.B = true
	}
	if ebiten.IsKeyPressed(ebiten.KeyEnter) {
		btn.Start = true
	}
	if ebiten.IsKeyPressed(ebiten.KeyShiftRight) {
		btn.Select = true
	}
	a.m.SetButtons(btn)

	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		a.paused = !a.paused
	}
	a.fast = ebiten.IsKeyPressed(ebiten.KeyTab)

	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		_ = a.m.ResetPostBoot()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyB) {
		_ = a.m.ResetWithBoot()
	}
	if a.paused && inpututil.IsKeyJustPressed(ebiten.KeyN) {
		a.m.StepFrame()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF11) {
		ebiten.SetFullscreen(!ebiten.IsFullscreen())
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF8) {
		a.showStats = !a.showStats
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF12) {
		_ = a.saveScreenshot()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF5) {
		if err := a.m.SaveStateToFile(a.statePath()); err == nil {
			a.toast("State saved")
		} else {
			a.toast("Save failed: " + err.Error())
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF9) {
		if err := a.m.LoadStateFromFile(a.statePath()); err == nil {
			a.toast("State loaded")
		} else {
			a.toast("Load failed: " + err.Error())
		}
	}
	if a.m.IsCGBCompat() {
		if inpututil.IsKeyJustPressed(ebiten.KeyBracketLeft) {
			a.m.CycleCompatPalette(-1)
			a.persistCompatPalette()
		}
		if inpututil.IsKeyJustPressed(ebiten.KeyBracketRight) {
			a.m.CycleCompatPalette(1)
			a.persistCompatPalette()
		}
	}

	muted := a.paused
	if muted != a.audioMuted {
		a.audioMuted = muted
		a.lastTime = time.Now()
		a.frameAcc = 0
	}

	if !a.paused {
		now := time.Now()
		dt := now.Sub(a.lastTime).Seconds()
		if dt < 0 || dt > 0.25 {
			dt = 0
		}
		a.lastTime = now
		const gbFPS = 4194304.0 / 70224.0 // ~59.7275
		speed := 1.0
		if a.fast {
			speed = 4.0
		}
		a.frameAcc += dt * gbFPS * speed
		steps := 0
		for a.frameAcc >= 1.0 && steps < 8 {
			a.m.StepFrame()
			a.frameAcc -= 1.0
			steps++
		}
		a.applyPlayerBufferSize()
		if a.audioMuted && a.m.APUBufferedStereo() > 1024 {
			a.audioMuted = false
		}
	}
	return nil
}

func (a *App) Draw(screen *ebiten.Image) {
	if a.tex == nil {
		a.tex = ebiten.NewImage(160, 144)
	}
	a.tex.WritePixels(a.m.Framebuffer())
	screen.DrawImage(a.tex, nil)

	if a.overlay != nil {
		screen.DrawImage(a.overlay, nil)
	}

	if a.showStats {
		bf := a.m.APUBufferedStereo()
		ms := (bf * 1000) / sampleRate
		und, lp, lw := 0, 0, 0
		if a.audioSrc != nil {
			und, lp, lw = a.audioSrc.underruns, a.audioSrc.lastPulled, a.audioSrc.lastWant
		}
		ebitenutil.DebugPrintAt(screen, fmt.Sprintf("Buf: %d (~%dms)", bf, ms), 4, 4)
		ebitenutil.DebugPrintAt(screen, fmt.Sprintf("Under: %d  Read: %d/%d", und, lp, lw), 4, 18)
	}
	if a.toastMsg != "" && time.Now().Before(a.toastUntil) {
		ebitenutil.DebugPrintAt(screen, a.toastMsg, 6, 4)
	}
}

func (a *App) Layout(outW, outH int) (int, int) { return 160, 144 }

func (a *App) toast(msg string) {
	a.toastMsg = msg
	a.toastUntil = time.Now().Add(2 * time.Second)
}

func (a *App) statePath() string {
	base := "unknown"
	if a.m.ROMPath() != "" {
		base = a.m.ROMPath()
	}
	return base + ".savestate"
}

func (a *App) persistCompatPalette() {
	if a.cfg.PerROMCompatPalette == nil || a.m.ROMPath() == "" {
		return
	}
	a.cfg.PerROMCompatPalette[a.m.ROMPath()] = a.m.CurrentCompatPalette()
	a.SaveSettings()
	a.toast(fmt.Sprintf("Compat palette: %s", a.m.CompatPaletteName(a.m.CurrentCompatPalette())))
}

func (a *App) saveScreenshot() error {
	fb := a.m.Framebuffer()
	img := &image.RGBA{
		Pix:    append([]byte(nil), fb...),
		Stride: 4 * 160,
		Rect:   image.Rect(0, 0, 160, 144),
	}
	ts := time.Now().Format("20060102_150405")
	f, err := os.Create(fmt.Sprintf("screenshot_%s.png", ts))
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

func settingsPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		d := filepath.Join(dir, "gbemu")
		_ = os.MkdirAll(d, 0755)
		return filepath.Join(d, "settings.json")
	}
	exe, _ := os.Executable()
	return filepath.Join(filepath.Dir(exe), "gbemu_settings.json")
}

func loadSettings(override Config) Config {
	var cfg Config
	if b, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(b, &cfg)
	}
	if override.Title != "" {
		cfg.Title = override.Title
	}
	if override.Scale != 0 {
		cfg.Scale = override.Scale
	}
	if override.ROMsDir != "" {
		cfg.ROMsDir = override.ROMsDir
	}
	cfg.AudioStereo = override.AudioStereo || cfg.AudioStereo
	cfg.AudioAdaptive = override.AudioAdaptive || cfg.AudioAdaptive
	cfg.AudioLowLatency = override.AudioLowLatency || cfg.AudioLowLatency
	if override.UseFetcherBG {
		cfg.UseFetcherBG = true
	}
	if strings.TrimSpace(cfg.Title) == "" {
		cfg.Title = "gbemu"
	}
	return cfg
}
