package notify

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"sync"
)

// CommandSpeaker speaks through the platform text-to-speech program:
// espeak-ng (or espeak) on Linux, say on macOS and System.Speech on
// Windows. Utterances never overlap.
type CommandSpeaker struct {
	goos     string
	run      runner
	lookPath func(string) (string, error)

	speakMu sync.Mutex

	mu     sync.RWMutex
	voice  string
	volume int
}

// NewCommandSpeaker creates a speaker. An empty voice uses the system
// default; volume is 0-100.
func NewCommandSpeaker(voice string, volume int) *CommandSpeaker {
	s := &CommandSpeaker{goos: runtime.GOOS, run: execRunner, lookPath: exec.LookPath}
	s.SetVoice(voice)
	s.SetVolume(volume)
	return s
}

func (s *CommandSpeaker) SetVoice(voice string) {
	s.mu.Lock()
	s.voice = strings.TrimSpace(voice)
	s.mu.Unlock()
}

func (s *CommandSpeaker) SetVolume(volume int) {
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}
	s.mu.Lock()
	s.volume = volume
	s.mu.Unlock()
}

func (s *CommandSpeaker) settings() (string, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.voice, s.volume
}

func (s *CommandSpeaker) Speak(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	name, args, err := s.command(text)
	if err != nil {
		return err
	}

	s.speakMu.Lock()
	defer s.speakMu.Unlock()
	_, err = s.run(ctx, name, args...)
	return err
}

func (s *CommandSpeaker) command(text string) (string, []string, error) {
	voice, volume := s.settings()

	switch s.goos {
	case "darwin":
		args := []string{}
		if voice != "" {
			args = append(args, "-v", voice)
		}
		// say has no volume flag; the embedded command scales 0-1.
		args = append(args, fmt.Sprintf("[[volm %.2f]] %s", float64(volume)/100, text))
		return "say", args, nil
	case "windows":
		script := fmt.Sprintf("Add-Type -AssemblyName System.Speech\n$s = New-Object System.Speech.Synthesis.SpeechSynthesizer\n$s.Volume = %d\n", volume)
		if voice != "" {
			script += fmt.Sprintf("$s.SelectVoice(%s)\n", psQuote(voice))
		}
		script += fmt.Sprintf("$s.Speak(%s)", psQuote(text))
		return "powershell", []string{"-NoProfile", "-NonInteractive", "-Command", script}, nil
	default:
		bin, err := s.espeak()
		if err != nil {
			return "", nil, err
		}
		// espeak amplitude runs 0-200 with 100 as the default.
		args := []string{"-a", fmt.Sprint(volume * 2)}
		if voice != "" {
			args = append(args, "-v", voice)
		}
		args = append(args, "--", text)
		return bin, args, nil
	}
}

func (s *CommandSpeaker) espeak() (string, error) {
	for _, bin := range []string{"espeak-ng", "espeak"} {
		if _, err := s.lookPath(bin); err == nil {
			return bin, nil
		}
	}
	return "", fmt.Errorf("no speech synthesizer found: install espeak-ng or espeak")
}

// ListVoices returns the voices the synthesizer offers.
func (s *CommandSpeaker) ListVoices(ctx context.Context) ([]string, error) {
	switch s.goos {
	case "darwin":
		out, err := s.run(ctx, "say", "-v", "?")
		if err != nil {
			return nil, err
		}
		return parseVoices(out, func(line string) string {
			// "Alex                en_US    # Most people ..."
			if i := strings.Index(line, "  "); i > 0 {
				return strings.TrimSpace(line[:i])
			}
			return ""
		}), nil
	case "windows":
		script := "Add-Type -AssemblyName System.Speech\n(New-Object System.Speech.Synthesis.SpeechSynthesizer).GetInstalledVoices() | ForEach-Object { $_.VoiceInfo.Name }"
		out, err := s.run(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", script)
		if err != nil {
			return nil, err
		}
		return parseVoices(out, strings.TrimSpace), nil
	default:
		bin, err := s.espeak()
		if err != nil {
			return nil, err
		}
		out, err := s.run(ctx, bin, "--voices")
		if err != nil {
			return nil, err
		}
		// Pty Language Age/Gender VoiceName File Other Languages
		header := true
		return parseVoices(out, func(line string) string {
			if header {
				header = false
				return ""
			}
			fields := strings.Fields(line)
			if len(fields) < 4 {
				return ""
			}
			return fields[3]
		}), nil
	}
}

func parseVoices(out []byte, name func(string) string) []string {
	var voices []string
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		if v := name(sc.Text()); v != "" {
			voices = append(voices, v)
		}
	}
	return voices
}
