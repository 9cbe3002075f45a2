package cmd

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/khanhnv2901/idprecon/internal/classifier"
	"github.com/khanhnv2901/idprecon/internal/domain/scan"
)

// progressPrinter renders a single self-overwriting status line while a scan
// runs. It implements the orchestrator's Observer.
type progressPrinter struct {
	out      io.Writer
	mu       sync.Mutex
	phase    scan.Phase
	probed   int
	found    int
	unclear  int
	started  time.Time
	running  bool
	updates  chan struct{}
	done     chan struct{}
	exited   chan struct{}
	stopOnce sync.Once
}

func newProgressPrinter(out io.Writer) *progressPrinter {
	return &progressPrinter{
		out:     out,
		started: time.Now(),
		updates: make(chan struct{}, 1),
		done:    make(chan struct{}),
		exited:  make(chan struct{}),
	}
}

func (p *progressPrinter) Start() {
	p.running = true
	go p.loop()
}

func (p *progressPrinter) PhaseStarted(phase scan.Phase) {
	p.mu.Lock()
	p.phase = phase
	p.mu.Unlock()
	p.notify()
}

func (p *progressPrinter) PhaseCompleted(phase scan.Phase, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clearLine()
	fmt.Fprintf(p.out, "%s %s completed in %.1fs\n", colorSuccess("✓"), phase, elapsed.Seconds())
}

func (p *progressPrinter) ConnectionProbed(name string, outcome classifier.Outcome) {
	p.mu.Lock()
	p.probed++
	switch outcome {
	case classifier.Found:
		p.found++
	case classifier.Unclear:
		p.unclear++
	}
	p.mu.Unlock()
	p.notify()
}

func (p *progressPrinter) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
	})
	if p.running {
		<-p.exited
	}
	p.mu.Lock()
	p.clearLine()
	p.mu.Unlock()
}

func (p *progressPrinter) notify() {
	select {
	case p.updates <- struct{}{}:
	default:
	}
}

func (p *progressPrinter) loop() {
	defer close(p.exited)
	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-p.updates:
			p.print()
		case <-ticker.C:
			p.print()
		case <-p.done:
			return
		}
	}
}

func (p *progressPrinter) print() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.phase == 0 {
		return
	}
	fmt.Fprint(p.out, p.line())
}

// line must be called with mu held.
func (p *progressPrinter) line() string {
	elapsed := time.Since(p.started).Seconds()
	if p.phase == scan.PhaseDiscovery {
		return fmt.Sprintf("\r[%s] Probed:%d Found:%d Unclear:%d Elapsed:%.0fs",
			p.phase, p.probed, p.found, p.unclear, elapsed)
	}
	return fmt.Sprintf("\r[%s] running... Elapsed:%.0fs", p.phase, elapsed)
}

func (p *progressPrinter) clearLine() {
	fmt.Fprintf(p.out, "\r%s\r", strings.Repeat(" ", 80))
}
