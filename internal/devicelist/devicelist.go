// Package devicelist enumerates candidate block devices and disk
// images for cmd/scalpel-tui's interactive source picker. It is
// adapted from the teacher's internal/device.List, trimmed to the
// subset the wizard actually needs: a path, a display name, a human
// size, and the filesystem label the platform tool reports (scalpel
// itself never interprets that label — it is display-only context
// for the operator picking a target, per spec §1's filesystem-metadata
// exclusion of the carving core).
package devicelist

import (
	"bufio"
	"bytes"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
)

// Device describes one candidate source the wizard can offer: a
// physical disk, partition, or removable drive.
type Device struct {
	Path       string
	Name       string
	SizeBytes  int64
	SizeHuman  string
	Filesystem string
	Removable  bool
}

// List returns the block devices visible to the current platform's
// enumeration tool. It is read-only: scalpel never writes to a
// listed device, it only opens one (via internal/imagesource) as the
// image to carve.
func List() ([]Device, error) {
	switch runtime.GOOS {
	case "darwin":
		return listDarwin()
	case "linux":
		return listLinux()
	default:
		return nil, fmt.Errorf("devicelist: unsupported platform %s (pass an image path instead)", runtime.GOOS)
	}
}

func listLinux() ([]Device, error) {
	cmd := exec.Command("lsblk", "-b", "-o", "NAME,SIZE,FSTYPE,RM", "-n", "-l")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("devicelist: lsblk: %w", err)
	}

	var devices []Device
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		size, _ := strconv.ParseInt(fields[1], 10, 64)
		d := Device{
			Path:      "/dev/" + fields[0],
			Name:      fields[0],
			SizeBytes: size,
			SizeHuman: humanSize(size),
		}
		if len(fields) >= 3 {
			d.Filesystem = fields[2]
		}
		if len(fields) >= 4 {
			d.Removable = fields[3] == "1"
		}
		devices = append(devices, d)
	}
	return devices, scanner.Err()
}

func listDarwin() ([]Device, error) {
	cmd := exec.Command("diskutil", "list")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("devicelist: diskutil: %w", err)
	}

	var devices []Device
	var currentDisk string
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "/dev/disk") {
			currentDisk = strings.TrimSuffix(strings.Fields(line)[0], ":")
			continue
		}

		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#:") || !strings.Contains(line, ":") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		var deviceID string
		for _, f := range fields {
			if strings.HasPrefix(f, "disk") {
				deviceID = f
				break
			}
		}
		if deviceID == "" {
			continue
		}

		var sizeBytes int64
		var sizeHuman string
		for i := 0; i+1 < len(fields); i++ {
			switch fields[i+1] {
			case "B", "KB", "MB", "GB", "TB":
				sizeBytes = parseSize(fields[i], fields[i+1])
				sizeHuman = fields[i] + " " + fields[i+1]
			}
		}

		devices = append(devices, Device{
			Path:       "/dev/" + deviceID,
			Name:       deviceID,
			SizeBytes:  sizeBytes,
			SizeHuman:  sizeHuman,
			Filesystem: fields[1],
			Removable:  !strings.Contains(currentDisk, "internal"),
		})
	}
	return devices, scanner.Err()
}

func parseSize(value, unit string) int64 {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	switch unit {
	case "KB":
		return int64(v * 1024)
	case "MB":
		return int64(v * 1024 * 1024)
	case "GB":
		return int64(v * 1024 * 1024 * 1024)
	case "TB":
		return int64(v * 1024 * 1024 * 1024 * 1024)
	default:
		return int64(v)
	}
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for x := n / unit; x >= unit; x /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
