//go:build integration

package test_test

import (
	"encoding/binary"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

var testBinary string

func TestMain(m *testing.M) {
	testBinary = os.Getenv("DICTATE_TEST_BIN")
	if testBinary == "" {
		fmt.Fprintln(os.Stderr, "DICTATE_TEST_BIN not set; build the binary and point it there")
		os.Exit(1)
	}
	os.Exit(m.Run())
}

func writeSilenceWAV(t *testing.T, sampleRate int, seconds float64) string {
	t.Helper()
	const headerSize = 44
	numSamples := int(float64(sampleRate) * seconds)
	dataSize := numSamples * 2

	buf := make([]byte, headerSize+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(headerSize-8+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(buf[32:34], 2)  // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16) // bits per sample
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))

	p := filepath.Join(t.TempDir(), "silence.wav")
	if err := os.WriteFile(p, buf, 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func cmds(parts ...string) string {
	return strings.Join(parts, "\n") + "\n"
}

// runDictate runs the binary in test mode and returns its stdout and log
// directory.
func runDictate(t *testing.T, stdin string) (out, logDir string) {
	t.Helper()
	logDir = t.TempDir()
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	cmd := exec.Command(testBinary, "-config", cfgPath, "-logpath", logDir, "-test", writeSilenceWAV(t, 16000, 2))
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Env = append(os.Environ(), "GROQ_API_KEY=", "OPENAI_API_KEY=")

	b, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("dictate exited with error: %v\noutput: %s", err, b)
	}
	return string(b), logDir
}

func readLog(t *testing.T, logDir, filename string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(logDir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return ""
		}
		t.Fatalf("failed to read %s: %v", filename, err)
	}
	return string(data)
}

func TestAcceptWritesTranscriptionLog(t *testing.T) {
	out, logDir := runDictate(t, cmds("KEYDOWN", "SLEEP 500", "KEYUP", "WAIT interactive", "ENTER", "WAIT accepted", "QUIT"))
	if !strings.Contains(out, `target "hello world"`) {
		t.Errorf("output:\n%s", out)
	}
	text := readLog(t, logDir, "transcribe_log.txt")
	if !strings.Contains(text, "Normal\thello world") {
		t.Errorf("transcribe_log.txt = %q", text)
	}
	diag := readLog(t, logDir, "diagnostics_log.txt")
	for _, ev := range []string{"app_start", "session_start", "injected", "accepted", "app_end"} {
		if !strings.Contains(diag, ev) {
			t.Errorf("diagnostics missing %s", ev)
		}
	}
}

func TestModeCycleThenCancel(t *testing.T) {
	out, logDir := runDictate(t, cmds(
		"TEXT Note:",
		"REPLY Structure|- hello world",
		"KEYDOWN", "SLEEP 500", "KEYUP", "WAIT interactive",
		"SHIFTTAB", "WAIT processing", "WAIT interactive",
		"ESC", "WAIT cancelled", "QUIT"))
	if !strings.Contains(out, `interactive mode="Structure" text="- hello world"`) {
		t.Errorf("no Structure view:\n%s", out)
	}
	if !strings.Contains(out, `target "Note:"`) {
		t.Errorf("target not restored:\n%s", out)
	}
	if strings.TrimSpace(readLog(t, logDir, "transcribe_log.txt")) != "" {
		t.Error("cancelled session was logged as a transcription")
	}
}

func TestTwoSessions(t *testing.T) {
	_, logDir := runDictate(t, cmds(
		"KEYDOWN", "SLEEP 400", "KEYUP", "WAIT interactive", "ENTER", "WAIT accepted",
		"TRANSCRIPT second take",
		"KEYDOWN", "SLEEP 400", "KEYUP", "WAIT interactive", "ENTER", "WAIT accepted",
		"QUIT"))
	text := readLog(t, logDir, "transcribe_log.txt")
	if strings.Count(text, "\n") != 2 || !strings.Contains(text, "second take") {
		t.Errorf("transcribe_log.txt = %q", text)
	}
}

func TestNoVoiceWarning(t *testing.T) {
	out, _ := runDictate(t, cmds("KEYDOWN", "SLEEP 4000", "KEYUP", "WAIT interactive", "QUIT"))
	if !strings.Contains(out, "no_voice") {
		t.Errorf("expected a no_voice view:\n%s", out)
	}
}
