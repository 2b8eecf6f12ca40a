package main

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const (
	mermaidASCIIVersion = "1.1.0"
	mermaidASCIIBaseURL = "https://github.com/AlexanderGrooff/mermaid-ascii/releases/download"
)

// SHA-256 checksums for mermaid-ascii v1.1.0 release assets.
var mermaidASCIIChecksums = map[string]string{
	"mermaid-ascii_Darwin_arm64.tar.gz":  "068d2ff869d4921655cab471500fffd8c3ed28155b100518ed3cf3835d53d3d0",
	"mermaid-ascii_Darwin_x86_64.tar.gz": "0cd4c9c01a03284fe866f39a1ce1aaee1e6a2fbd91deedc4ec254cb87622eec8",
	"mermaid-ascii_Linux_arm64.tar.gz":   "3b7d0a95141bfbca838e445ea802ffb7fba8873b3c4af498482c84f83526f2db",
	"mermaid-ascii_Linux_x86_64.tar.gz":  "838ea93d561b3bc83aa15531c6ed7d2d261a8edc521d5484f7e91fe831cc4c65",
}

// installer downloads and verifies the mermaid-ascii renderer.
type installer struct {
	version   string
	baseURL   string
	checksums map[string]string
	client    httpGetter
	stdout    io.Writer
}

func runInstall(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("install-tools", flag.ContinueOnError)
	fs.SetOutput(stderr)
	binDir := fs.String("bin-dir", filepath.Join(mindflowDir(), "bin"), "directory for the mermaid-ascii binary")
	ver := fs.String("mermaid-ascii-version", mermaidASCIIVersion, "mermaid-ascii release to install")
	checksumFile := fs.String("checksums", "", "SHA-256 checksums file for the release (required for other versions)")
	writeSettings := fs.Bool("write-settings", true, "record the binary path in settings.json")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	inst := &installer{
		version:   *ver,
		baseURL:   mermaidASCIIBaseURL,
		checksums: mermaidASCIIChecksums,
		client:    &http.Client{Timeout: 60 * time.Second},
		stdout:    stdout,
	}
	if *checksumFile != "" {
		f, err := os.Open(*checksumFile)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		sums, err := parseChecksumFile(f)
		f.Close()
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		inst.checksums = sums
	} else if *ver != mermaidASCIIVersion {
		fmt.Fprintf(stderr, "Error: no built-in checksums for mermaid-ascii %s; pass -checksums\n", *ver)
		return 2
	}

	destPath, err := inst.install(*binDir)
	if err != nil {
		fmt.Fprintf(stderr, "Warning: %v; ASCII diagrams will use the built-in renderer\n", err)
		return 1
	}

	if *writeSettings {
		cfg := loadConfig()
		cfg.MermaidASCIIBin = destPath
		if err := saveSettings(cfg); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "Config written to %s\n", settingsPath())
		signalRunningServer(stdout)
	}
	return 0
}

// saveSettings writes cfg to settings.json.
func saveSettings(cfg Config) error {
	if err := os.MkdirAll(mindflowDir(), 0o700); err != nil {
		return fmt.Errorf("cannot create %s: %w", mindflowDir(), err)
	}
	data, _ := json.MarshalIndent(cfg, "", "  ")
	if err := os.WriteFile(settingsPath(), data, 0o644); err != nil {
		return fmt.Errorf("cannot write %s: %w", settingsPath(), err)
	}
	return nil
}

// signalRunningServer sends SIGHUP to a running mindflow server (via
// pidfile) so it picks up the new settings. Returns true if one was signaled.
func signalRunningServer(stdout io.Writer) bool {
	data, err := os.ReadFile(pidPath())
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Check if process is alive.
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return false
	}
	if err := proc.Signal(syscall.SIGHUP); err != nil {
		return false
	}
	fmt.Fprintf(stdout, "Signaled running server (PID %d) to reload configuration\n", pid)
	return true
}

// install downloads mermaid-ascii into binDir and returns the binary path.
// An existing binary is kept.
func (in *installer) install(binDir string) (string, error) {
	destPath := filepath.Join(binDir, "mermaid-ascii")

	if _, err := os.Stat(destPath); err == nil {
		fmt.Fprintf(in.stdout, "mermaid-ascii already installed at %s\n", destPath)
		return destPath, nil
	}

	assetName, err := mermaidASCIIAssetName(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return "", err
	}
	expected, ok := in.checksums[assetName]
	if !ok {
		return "", fmt.Errorf("no checksum for %s", assetName)
	}

	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return "", fmt.Errorf("cannot create %s: %w", binDir, err)
	}

	url := fmt.Sprintf("%s/%s/%s", in.baseURL, in.version, assetName)
	fmt.Fprintf(in.stdout, "Downloading mermaid-ascii %s...\n", in.version)

	tmpPath, err := downloadToTempFile(url, binDir, in.client)
	if err != nil {
		return "", fmt.Errorf("download failed: %w", err)
	}
	defer os.Remove(tmpPath)

	actual, err := sha256File(tmpPath)
	if err != nil {
		return "", fmt.Errorf("cannot compute checksum: %w", err)
	}
	if actual != expected {
		return "", fmt.Errorf("checksum mismatch for %s (expected %s, got %s)", assetName, expected, actual)
	}

	f, err := os.Open(tmpPath)
	if err != nil {
		return "", fmt.Errorf("cannot open archive: %w", err)
	}
	defer f.Close()

	if err := extractTarGz(f, binDir, "mermaid-ascii"); err != nil {
		_ = os.Remove(destPath)
		return "", fmt.Errorf("extraction failed: %w", err)
	}
	if err := os.Chmod(destPath, 0o755); err != nil {
		return "", fmt.Errorf("chmod failed: %w", err)
	}

	fmt.Fprintf(in.stdout, "mermaid-ascii installed to %s\n", destPath)
	return destPath, nil
}

// mermaidASCIIAssetName returns the GitHub release asset name for a platform.
func mermaidASCIIAssetName(goos, goarch string) (string, error) {
	osName := ""
	switch goos {
	case "darwin":
		osName = "Darwin"
	case "linux":
		osName = "Linux"
	default:
		return "", fmt.Errorf("mermaid-ascii: unsupported OS %q", goos)
	}

	archName := ""
	switch goarch {
	case "amd64":
		archName = "x86_64"
	case "arm64":
		archName = "arm64"
	case "386":
		archName = "i386"
	default:
		return "", fmt.Errorf("mermaid-ascii: unsupported architecture %q", goarch)
	}

	return fmt.Sprintf("mermaid-ascii_%s_%s.tar.gz", osName, archName), nil
}

// extractTarGz extracts a specific file from a tar.gz archive into destDir.
func extractTarGz(r io.Reader, destDir, targetName string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("gzip: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("file %q not found in archive", targetName)
		}
		if err != nil {
			return fmt.Errorf("tar: %w", err)
		}

		// Match by base name (archive may include directory prefix).
		if filepath.Base(hdr.Name) != targetName || hdr.Typeflag != tar.TypeReg {
			continue
		}

		destPath := filepath.Join(destDir, targetName)
		f, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
		if err != nil {
			return fmt.Errorf("create %s: %w", destPath, err)
		}
		if _, err := io.Copy(f, tr); err != nil { //nolint:gosec // bounded by tar header size
			f.Close()
			return fmt.Errorf("write %s: %w", destPath, err)
		}
		return f.Close()
	}
}
