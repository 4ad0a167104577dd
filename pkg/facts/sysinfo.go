/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package facts

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"

	"github.com/carverauto/factsync/pkg/logger"
	"github.com/carverauto/factsync/pkg/models"
)

var errNoUsableInterface = errors.New("no usable network interface with a hardware address")

const (
	bytesPerGB = 1 << 30

	throughputSampleWindow = time.Second
)

// SystemProvider reads host facts via gopsutil. It implements
// FingerprintSource, HardwareProvider and PowerProvider.
type SystemProvider struct {
	logger logger.Logger

	boardNamePath string
	interfaces    func() ([]net.Interface, error)
}

func NewSystemProvider(log logger.Logger) *SystemProvider {
	return &SystemProvider{
		logger:        log,
		boardNamePath: "/sys/devices/virtual/dmi/id/board_name",
		interfaces:    net.Interfaces,
	}
}

// Fingerprint returns the MAC address of the first up, non-loopback,
// non-virtual interface. The choice is deterministic for a given host.
func (p *SystemProvider) Fingerprint(_ context.Context) (string, error) {
	ifaces, err := p.interfaces()
	if err != nil {
		return "", err
	}

	mac := pickFingerprint(ifaces)
	if mac == "" {
		return "", errNoUsableInterface
	}

	return mac, nil
}

func (p *SystemProvider) Hardware(ctx context.Context) (models.HardwareSummary, error) {
	summary := models.HardwareSummary{
		Motherboard: p.boardName(),
		IPAddress:   localIP(ctx),
	}

	cpuInfo, err := cpu.InfoWithContext(ctx)
	if err != nil {
		return models.HardwareSummary{}, err
	}

	if len(cpuInfo) > 0 {
		summary.Processor = cpuInfo[0].ModelName
	}

	counts, err := cpu.CountsWithContext(ctx, false)
	if err != nil {
		p.logger.Warn().Err(err).Msg("Physical core count unavailable")
	} else {
		summary.ProcessorCores = counts
	}

	vmStats, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return models.HardwareSummary{}, err
	}

	summary.TotalMemoryGB = float64(vmStats.Total) / bytesPerGB
	summary.AvailableMemoryGB = float64(vmStats.Available) / bytesPerGB

	return summary, nil
}

func (p *SystemProvider) Disks(ctx context.Context) ([]models.DiskSlot, error) {
	partitions, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, err
	}

	slots := make([]models.DiskSlot, 0, len(partitions))

	for _, part := range partitions {
		usage, err := disk.UsageWithContext(ctx, part.Mountpoint)
		if err != nil {
			p.logger.Warn().Err(err).Str("mountpoint", part.Mountpoint).Msg("Disk usage unavailable")
			continue
		}

		if usage.Total == 0 {
			continue
		}

		slots = append(slots, models.DiskSlot{
			SlotLabel:      part.Mountpoint,
			TotalGB:        float64(usage.Total) / bytesPerGB,
			AvailableGB:    float64(usage.Free) / bytesPerGB,
			PhysicalDevice: part.Device,
		})
	}

	return slots, nil
}

// Graphics enumerates DRM adapters from sysfs. Hosts without a GPU or
// without sysfs report an empty set rather than an error.
func (p *SystemProvider) Graphics(_ context.Context) ([]models.GraphicsCard, error) {
	entries, err := os.ReadDir("/sys/class/drm")
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, err
	}

	var cards []models.GraphicsCard

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "card") || strings.Contains(name, "-") {
			continue
		}

		vendor := readSysfsString("/sys/class/drm/" + name + "/device/vendor")
		device := readSysfsString("/sys/class/drm/" + name + "/device/device")

		if vendor == "" && device == "" {
			continue
		}

		cards = append(cards, models.GraphicsCard{
			Name:      strings.TrimSpace(vendor + " " + device),
			Dedicated: readSysfsString("/sys/class/drm/"+name+"/device/boot_vga") != "1",
		})
	}

	return cards, nil
}

func (p *SystemProvider) Sensors(ctx context.Context) ([]models.SensorReading, error) {
	temps, err := host.SensorsTemperaturesWithContext(ctx)
	if err != nil {
		// Partial results are normal on hosts with flaky sensor drivers.
		if len(temps) == 0 {
			return nil, err
		}

		p.logger.Warn().Err(err).Msg("Partial sensor read")
	}

	readings := make([]models.SensorReading, 0, len(temps))

	for _, t := range temps {
		if t.SensorKey == "" {
			continue
		}

		celsius := t.Temperature
		healthy := t.Critical == 0 || t.Temperature < t.Critical

		readings = append(readings, models.SensorReading{
			Name:    t.SensorKey,
			Celsius: &celsius,
			Healthy: &healthy,
		})
	}

	return readings, nil
}

// Throughput samples per-interface counters twice over a short window and
// reports byte rates.
func (p *SystemProvider) Throughput(ctx context.Context) ([]models.ThroughputSample, error) {
	before, err := psnet.IOCountersWithContext(ctx, true)
	if err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(throughputSampleWindow):
	}

	after, err := psnet.IOCountersWithContext(ctx, true)
	if err != nil {
		return nil, err
	}

	return throughputRates(before, after, throughputSampleWindow, time.Now().UTC()), nil
}

// Events reports the most recent startup derived from the host boot time.
// Shutdowns are recorded by the agent itself on the way down.
func (p *SystemProvider) Events(ctx context.Context) ([]models.PowerEvent, error) {
	bootEpoch, err := host.BootTimeWithContext(ctx)
	if err != nil {
		return nil, err
	}

	return []models.PowerEvent{{
		Timestamp: time.Unix(int64(bootEpoch), 0).UTC(),
		Action:    models.PowerStartup,
	}}, nil
}

func (p *SystemProvider) boardName() string {
	if name := readSysfsString(p.boardNamePath); name != "" {
		return name
	}

	return "unknown"
}

func pickFingerprint(ifaces []net.Interface) string {
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		name := strings.ToLower(iface.Name)
		if strings.HasPrefix(name, "docker") || strings.HasPrefix(name, "br-") ||
			strings.HasPrefix(name, "veth") || strings.HasPrefix(name, "virbr") {
			continue
		}

		if len(iface.HardwareAddr) == 0 {
			continue
		}

		return iface.HardwareAddr.String()
	}

	return ""
}

func throughputRates(before, after []psnet.IOCountersStat, window time.Duration, observed time.Time) []models.ThroughputSample {
	prev := make(map[string]psnet.IOCountersStat, len(before))
	for _, stat := range before {
		prev[stat.Name] = stat
	}

	seconds := window.Seconds()
	if seconds <= 0 {
		return nil
	}

	samples := make([]models.ThroughputSample, 0, len(after))

	for _, stat := range after {
		base, ok := prev[stat.Name]
		if !ok || stat.BytesRecv < base.BytesRecv || stat.BytesSent < base.BytesSent {
			// Counter reset between samples, skip this interface.
			continue
		}

		samples = append(samples, models.ThroughputSample{
			Interface:  stat.Name,
			RxBytesSec: float64(stat.BytesRecv-base.BytesRecv) / seconds,
			TxBytesSec: float64(stat.BytesSent-base.BytesSent) / seconds,
			ObservedAt: observed,
		})
	}

	return samples
}

func readSysfsString(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}

	return strings.TrimSpace(string(data))
}

func localIP(ctx context.Context) string {
	if ip := firstUsableIPv4(); ip != "" {
		return ip
	}

	dialer := &net.Dialer{Timeout: time.Second}

	conn, err := dialer.DialContext(ctx, "udp", "8.8.8.8:80")
	if err != nil {
		return "unknown"
	}
	defer func() {
		_ = conn.Close()
	}()

	localAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "unknown"
	}

	return localAddr.IP.String()
}

func firstUsableIPv4() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return ""
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		name := strings.ToLower(iface.Name)
		if strings.HasPrefix(name, "docker") || strings.HasPrefix(name, "br-") || strings.HasPrefix(name, "veth") {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok || ipNet == nil {
				continue
			}

			ip := ipNet.IP.To4()
			if ip == nil || !ip.IsGlobalUnicast() {
				continue
			}

			return ip.String()
		}
	}

	return ""
}
