package output

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"
)

type JobOutput struct {
	ID          int
	Label       string
	Status      string
	Message     string
	Progress    string
	StartTime   time.Time
	LastUpdated time.Time
	Error       error
}

type ErrorReport struct {
	Label string
	Error error
	Time  time.Time
}

// Manager renders the state of every registered job. On a terminal it redraws
// in place; otherwise only the final summary is written.
type Manager struct {
	out         io.Writer
	interactive bool
	jobs        []*JobOutput
	mutex       sync.RWMutex
	numLines    int
	errors      []ErrorReport
	doneCh      chan struct{}
	displayTick time.Duration
	displayWg   sync.WaitGroup
}

func NewManager() *Manager {
	return NewManagerWithWriter(os.Stdout, term.IsTerminal(int(os.Stdout.Fd())))
}

func NewManagerWithWriter(out io.Writer, interactive bool) *Manager {
	return &Manager{
		out:         out,
		interactive: interactive,
		doneCh:      make(chan struct{}),
		displayTick: 300 * time.Millisecond,
	}
}

func (m *Manager) Register(label string) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	now := time.Now()
	m.jobs = append(m.jobs, &JobOutput{
		ID:          len(m.jobs) + 1,
		Label:       label,
		Status:      StatusPending,
		StartTime:   now,
		LastUpdated: now,
	})
	return len(m.jobs)
}

func (m *Manager) job(id int) *JobOutput {
	if id < 1 || id > len(m.jobs) {
		return nil
	}
	return m.jobs[id-1]
}

func (m *Manager) SetLabel(id int, label string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info := m.job(id); info != nil {
		info.Label = label
	}
}

func (m *Manager) SetMessage(id int, message string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info := m.job(id); info != nil {
		info.Message = message
		info.LastUpdated = time.Now()
	}
}

func (m *Manager) SetStatus(id int, status string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info := m.job(id); info != nil {
		info.Status = status
		info.LastUpdated = time.Now()
	}
}

func (m *Manager) GetStatus(id int) string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if info := m.job(id); info != nil {
		return info.Status
	}
	return "unknown"
}

func (m *Manager) Complete(id int, message string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info := m.job(id); info != nil {
		info.Progress = ""
		if message == "" {
			message = fmt.Sprintf("Completed %s", info.Label)
		}
		info.Message = message
		info.Status = StatusSuccess
		info.LastUpdated = time.Now()
	}
}

func (m *Manager) ReportError(id int, err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info := m.job(id); info != nil {
		info.Progress = ""
		info.Status = StatusError
		info.Error = err
		info.LastUpdated = time.Now()
		m.errors = append(m.errors, ErrorReport{Label: info.Label, Error: err, Time: time.Now()})
	}
}

// UpdateProgress replaces the job's progress line.
func (m *Manager) UpdateProgress(id int, downloaded, total int64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info := m.job(id); info != nil {
		elapsed := time.Since(info.StartTime).Seconds()
		info.Progress = fmt.Sprintf("%s %s %s",
			PrintProgressBar(downloaded, total, 30),
			StyleSymbols["bullet"],
			FormatSpeed(downloaded, elapsed))
		info.LastUpdated = time.Now()
	}
}

func (m *Manager) statusIndicator(status string) string {
	switch status {
	case StatusSuccess:
		return successStyle.Render(StyleSymbols["pass"])
	case StatusError:
		return errorStyle.Render(StyleSymbols["fail"])
	case StatusActive:
		return infoStyle.Render(StyleSymbols["active"])
	default:
		return pendingStyle.Render(StyleSymbols["pending"])
	}
}

func (m *Manager) styledMessage(info *JobOutput) string {
	switch info.Status {
	case StatusSuccess:
		return successStyle.Render(info.Message)
	case StatusError:
		return errorStyle.Render(info.Message)
	default:
		return pendingStyle.Render(info.Message)
	}
}

// render returns the display lines, newest completed jobs last, trimmed to
// maxLines by dropping the oldest completed entries first.
func (m *Manager) render(maxLines int) []string {
	var running, done []*JobOutput
	for _, info := range m.jobs {
		if info.Status == StatusSuccess || info.Status == StatusError {
			done = append(done, info)
		} else {
			running = append(running, info)
		}
	}
	var lines []string
	for _, info := range running {
		elapsed := time.Since(info.StartTime).Round(time.Second)
		message := info.Message
		if message == "" {
			message = "Waiting..."
		}
		lines = append(lines, fmt.Sprintf("  %s %s %s", m.statusIndicator(info.Status), debugStyle.Render(elapsed.String()), pendingStyle.Render(message)))
		if info.Progress != "" {
			lines = append(lines, "      "+streamStyle.Render(info.Progress))
		}
	}
	room := max(0, maxLines-len(lines))
	if len(done) > room {
		done = done[len(done)-room:]
	}
	for _, info := range done {
		total := info.LastUpdated.Sub(info.StartTime).Round(time.Second)
		lines = append(lines, fmt.Sprintf("  %s %s %s", m.statusIndicator(info.Status), debugStyle.Render(total.String()), m.styledMessage(info)))
	}
	if len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	return lines
}

func (m *Manager) updateDisplay() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	_, termHeight := terminalSize()
	if m.numLines > 0 {
		fmt.Fprintf(m.out, "\033[%dA\033[J", m.numLines)
	}
	lines := m.render(termHeight - 3)
	for _, line := range lines {
		fmt.Fprintln(m.out, line)
	}
	m.numLines = len(lines)
}

func (m *Manager) StartDisplay() {
	m.displayWg.Add(1)
	go func() {
		defer m.displayWg.Done()
		ticker := time.NewTicker(m.displayTick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if m.interactive {
					m.updateDisplay()
				}
			case <-m.doneCh:
				if m.interactive {
					m.updateDisplay()
				}
				m.ShowSummary()
				return
			}
		}
	}()
}

func (m *Manager) StopDisplay() {
	close(m.doneCh)
	m.displayWg.Wait()
}

func (m *Manager) displayErrors() {
	if len(m.errors) == 0 {
		return
	}
	fmt.Fprintln(m.out)
	fmt.Fprintln(m.out, "  "+errorStyle.Bold(true).Render("Errors:"))
	for i, report := range m.errors {
		fmt.Fprintf(m.out, "    %s %s %s\n",
			errorStyle.Render(fmt.Sprintf("%d.", i+1)),
			debugStyle.Render(fmt.Sprintf("[%s]", report.Time.Format("15:04:05"))),
			errorStyle.Render(report.Label))
		fmt.Fprintf(m.out, "      %s\n", errorStyle.Render(fmt.Sprintf("Error: %v", report.Error)))
	}
}

func (m *Manager) ShowSummary() {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	var success, failures int
	for _, info := range m.jobs {
		switch info.Status {
		case StatusSuccess:
			success++
		case StatusError:
			failures++
		}
	}
	fmt.Fprintln(m.out)
	fmt.Fprintln(m.out, "  "+success2Style.Render(fmt.Sprintf("Completed %d of %d", success, len(m.jobs))))
	if failures > 0 {
		fmt.Fprintln(m.out, "  "+errorStyle.Render(fmt.Sprintf("Failed %d of %d", failures, len(m.jobs))))
	}
	m.displayErrors()
	fmt.Fprintln(m.out)
}
