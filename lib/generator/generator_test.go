// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package generator

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/bureau-foundation/vm-modules/lib/config"
	"github.com/bureau-foundation/vm-modules/lib/hwinfo"
	"github.com/bureau-foundation/vm-modules/lib/testutil"
	"github.com/bureau-foundation/vm-modules/lib/unitdir"
	"github.com/bureau-foundation/vm-modules/lib/unitname"
)

const testRelease = "5.10.0"

const mountTagPath = "sys/bus/virtio/drivers/9pnet_virtio/virtio2/mount_tag"

const wantStagingMount = `# Automatically generated by 9p-modules-generator

[Unit]
Description=Temporary Modules Directory
DefaultDependencies=no
Conflicts=umount.target
After=systemd-remount-fs.service
Before=local-fs.target umount.target

[Mount]
What=tmpfs
Where=/lib/modules/5.10.0
Type=tmpfs
Options=mode=755,strictatime
`

const wantSourceMount = `# Automatically generated by 9p-modules-generator

[Unit]
Description=9p Modules Build Directory
DefaultDependencies=no
Conflicts=umount.target
Before=local-fs.target umount.target

[Mount]
What=modules
Where=/lib/modules/5.10.0/build
Type=9p
Options=trans=virtio,ro
`

const wantModulesService = `# Automatically generated by 9p-modules-generator

[Unit]
Description=Sets up modules mounted via 9p
DefaultDependencies=no
RequiresMountsFor=/lib/modules/5.10.0 /lib/modules/5.10.0/build
Before=sysinit.target systemd-modules-load.service systemd-udevd.service kmod-static-nodes.service

[Service]
Type=oneshot
RemainAfterExit=yes
ExecStart=/bin/ln -s build/modules.order /lib/modules/5.10.0/modules.order
ExecStart=/bin/ln -s build/modules.builtin /lib/modules/5.10.0/modules.builtin
ExecStart=/bin/ln -s build /lib/modules/5.10.0/kernel
ExecStart=/sbin/depmod 5.10.0
`

const wantCleanupService = `# Automatically generated by 9p-modules-generator

[Unit]
Description=Cleans up empty module directories
DefaultDependencies=no
After=local-fs.target
Before=sysinit.target

[Service]
Type=oneshot
RemainAfterExit=yes
ExecStart=/usr/bin/find /lib/modules -mindepth 1 -maxdepth 1 -type d -empty -delete
`

// cleanupOnly is the output tree of a run that found no modules share.
var cleanupOnly = map[string]string{
	"9p-modules-cleanup.service":                      wantCleanupService,
	"sysinit.target.wants":                            "dir",
	"sysinit.target.wants/9p-modules-cleanup.service": "-> ../9p-modules-cleanup.service",
}

// withModules is the output tree of a run that found the share.
var withModules = map[string]string{
	"lib-modules-5.10.0.mount":                             wantStagingMount,
	"lib-modules-5.10.0-build.mount":                       wantSourceMount,
	"9p-modules.service":                                   wantModulesService,
	"9p-modules-cleanup.service":                           wantCleanupService,
	"local-fs.target.wants":                                "dir",
	"local-fs.target.wants/lib-modules-5.10.0.mount":       "-> ../lib-modules-5.10.0.mount",
	"local-fs.target.wants/lib-modules-5.10.0-build.mount": "-> ../lib-modules-5.10.0-build.mount",
	"sysinit.target.wants":                                 "dir",
	"sysinit.target.wants/9p-modules.service":              "-> ../9p-modules.service",
	"sysinit.target.wants/9p-modules-cleanup.service":      "-> ../9p-modules-cleanup.service",
}

// fixture is a synthetic sysfs root and an open output directory.
type fixture struct {
	root   string
	output string
	units  *unitdir.Dir
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	base := t.TempDir()
	f := &fixture{
		root:   filepath.Join(base, "root"),
		output: filepath.Join(base, "generator"),
	}
	for _, dir := range []string{f.root, f.output} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("MkdirAll(%s): %v", dir, err)
		}
	}
	units, err := unitdir.Open(f.output)
	if err != nil {
		t.Fatalf("unitdir.Open: %v", err)
	}
	t.Cleanup(func() { units.Close() })
	f.units = units
	return f
}

func (f *fixture) generator(cfg *config.Config) *Generator {
	return &Generator{
		Units:   f.units,
		Config:  cfg,
		Release: testRelease,
		Root:    f.root,
	}
}

func requireSnapshot(t *testing.T, dir string, want map[string]string) {
	t.Helper()
	got := testutil.Snapshot(t, dir)
	for key, value := range want {
		if got[key] != value {
			t.Errorf("%s =\n%s\nwant:\n%s", key, got[key], value)
		}
	}
	for key := range got {
		if _, ok := want[key]; !ok {
			t.Errorf("unexpected entry %s", key)
		}
	}
}

func TestRunNoDevice(t *testing.T) {
	fixture := newFixture(t)

	report, err := fixture.generator(nil).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.ModulesFound {
		t.Error("ModulesFound = true with no devices")
	}
	if report.Release != testRelease {
		t.Errorf("Release = %q, want %q", report.Release, testRelease)
	}
	if names := report.UnitNames(); !reflect.DeepEqual(names, []string{CleanupServiceName}) {
		t.Errorf("units = %v, want only %s", names, CleanupServiceName)
	}
	requireSnapshot(t, fixture.output, cleanupOnly)
}

func TestRunOtherTag(t *testing.T) {
	fixture := newFixture(t)
	testutil.WriteFile(t, fixture.root, mountTagPath, "rootfs\x00")

	report, err := fixture.generator(nil).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.ModulesFound {
		t.Error("ModulesFound = true for a non-matching tag")
	}
	requireSnapshot(t, fixture.output, cleanupOnly)
}

func TestRunModulesShare(t *testing.T) {
	fixture := newFixture(t)
	testutil.WriteFile(t, fixture.root, "sys/bus/virtio/drivers/9pnet_virtio/virtio0/mount_tag", "rootfs\x00")
	testutil.WriteFile(t, fixture.root, mountTagPath, "modules\x00")

	report, err := fixture.generator(nil).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !report.ModulesFound {
		t.Error("ModulesFound = false with a modules share")
	}

	wantNames := []string{
		"lib-modules-5.10.0.mount",
		"lib-modules-5.10.0-build.mount",
		ModulesServiceName,
		CleanupServiceName,
	}
	if names := report.UnitNames(); !reflect.DeepEqual(names, wantNames) {
		t.Errorf("units = %v, want %v", names, wantNames)
	}

	wantEnrollments := []Enrollment{
		{LocalFSTarget, "lib-modules-5.10.0.mount"},
		{LocalFSTarget, "lib-modules-5.10.0-build.mount"},
		{SysinitTarget, ModulesServiceName},
		{SysinitTarget, CleanupServiceName},
	}
	if !reflect.DeepEqual(report.Enrollments, wantEnrollments) {
		t.Errorf("enrollments = %v, want %v", report.Enrollments, wantEnrollments)
	}

	requireSnapshot(t, fixture.output, withModules)

	for _, written := range report.Units {
		if written.Digest != unitdir.HashUnit([]byte(withModules[written.Name])) {
			t.Errorf("digest of %s does not match its content", written.Name)
		}
	}
}

func TestRunIdempotent(t *testing.T) {
	fixture := newFixture(t)
	testutil.WriteFile(t, fixture.root, mountTagPath, "modules\x00")

	first, err := fixture.generator(nil).Run()
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	firstSnapshot := testutil.Snapshot(t, fixture.output)

	second, err := fixture.generator(nil).Run()
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	secondSnapshot := testutil.Snapshot(t, fixture.output)

	if !reflect.DeepEqual(first.Units, second.Units) {
		t.Errorf("digests differ between runs:\n%v\n%v", first.Units, second.Units)
	}
	if !reflect.DeepEqual(firstSnapshot, secondSnapshot) {
		t.Errorf("output differs between runs:\n%v\n%v", firstSnapshot, secondSnapshot)
	}
}

func TestRunShareRemovedLeavesStaleUnits(t *testing.T) {
	fixture := newFixture(t)
	descriptor := testutil.WriteFile(t, fixture.root, mountTagPath, "modules\x00")

	if _, err := fixture.generator(nil).Run(); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if err := os.Remove(descriptor); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	report, err := fixture.generator(nil).Run()
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if report.ModulesFound {
		t.Error("ModulesFound = true after share removed")
	}
	// Generator output directories live on tmpfs and start empty each
	// boot; within one directory earlier units are never removed.
	requireSnapshot(t, fixture.output, withModules)
}

func TestRunCustomConfig(t *testing.T) {
	fixture := newFixture(t)
	testutil.WriteFile(t, fixture.root, "dev/fake/virtio9/tag", "kmods\x00")

	cfg := config.Default()
	cfg.ModulesRoot = "/usr/lib/modules"
	cfg.MountTag = "kmods"
	cfg.MountTagGlob = "/dev/fake/virtio*/tag"
	cfg.Tools = config.ToolsConfig{Ln: "/usr/bin/ln", Depmod: "/usr/sbin/depmod", Find: "/usr/bin/find"}

	report, err := fixture.generator(cfg).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.ModulesFound {
		t.Fatal("ModulesFound = false with custom tag and glob")
	}

	snapshot := testutil.Snapshot(t, fixture.output)
	source := snapshot["usr-lib-modules-5.10.0-build.mount"]
	if !strings.Contains(source, "What=kmods\n") || !strings.Contains(source, "Where=/usr/lib/modules/5.10.0/build\n") {
		t.Errorf("source mount =\n%s", source)
	}
	service := snapshot[ModulesServiceName]
	for _, line := range []string{
		"ExecStart=/usr/bin/ln -s build /usr/lib/modules/5.10.0/kernel\n",
		"ExecStart=/usr/sbin/depmod 5.10.0\n",
	} {
		if !strings.Contains(service, line) {
			t.Errorf("service missing %q:\n%s", line, service)
		}
	}
	if !strings.Contains(snapshot[CleanupServiceName], "ExecStart=/usr/bin/find /usr/lib/modules -mindepth 1") {
		t.Errorf("cleanup service =\n%s", snapshot[CleanupServiceName])
	}
}

func TestRunReleaseNeedsEscaping(t *testing.T) {
	fixture := newFixture(t)
	testutil.WriteFile(t, fixture.root, mountTagPath, "modules\x00")

	generator := fixture.generator(nil)
	generator.Release = "6.8.0-rc3+"

	report, err := generator.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{
		`lib-modules-6.8.0\x2drc3\x2b.mount`,
		`lib-modules-6.8.0\x2drc3\x2b-build.mount`,
		ModulesServiceName,
		CleanupServiceName,
	}
	if names := report.UnitNames(); !reflect.DeepEqual(names, want) {
		t.Errorf("units = %v, want %v", names, want)
	}
}

func TestRunProbeError(t *testing.T) {
	fixture := newFixture(t)
	testutil.WriteFile(t, fixture.root, mountTagPath, "")

	report, err := fixture.generator(nil).Run()
	var probeErr *hwinfo.ProbeError
	if !errors.As(err, &probeErr) {
		t.Fatalf("Run error = %v, want *hwinfo.ProbeError", err)
	}
	if len(report.Units) != 0 {
		t.Errorf("units written after probe failure: %v", report.UnitNames())
	}
	requireSnapshot(t, fixture.output, map[string]string{})
}

func TestRunNameTooLong(t *testing.T) {
	fixture := newFixture(t)
	testutil.WriteFile(t, fixture.root, mountTagPath, "modules\x00")

	cfg := config.Default()
	cfg.ModulesRoot = "/" + strings.Repeat("m", unitname.NameMax)

	report, err := fixture.generator(cfg).Run()
	testutil.RequireErrorIs(t, err, unitname.ErrNameTooLong, "over-long modules root")
	// The run stops before anything, including cleanup, is written.
	if len(report.Units) != 0 {
		t.Errorf("units written: %v", report.UnitNames())
	}
}

func TestRunWriteFailureStopsRun(t *testing.T) {
	fixture := newFixture(t)
	testutil.WriteFile(t, fixture.root, mountTagPath, "modules\x00")

	// A directory where the source mount unit belongs makes its write
	// fail after the staging mount has been written.
	if err := os.Mkdir(filepath.Join(fixture.output, "lib-modules-5.10.0-build.mount"), 0755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	report, err := fixture.generator(nil).Run()
	if err == nil {
		t.Fatal("Run succeeded despite unwritable unit")
	}
	if !strings.Contains(err.Error(), "lib-modules-5.10.0-build.mount") {
		t.Errorf("error %q does not name the failing unit", err)
	}
	if names := report.UnitNames(); !reflect.DeepEqual(names, []string{"lib-modules-5.10.0.mount"}) {
		t.Errorf("units = %v, want only the staging mount", names)
	}
	if _, err := os.Stat(filepath.Join(fixture.output, CleanupServiceName)); !os.IsNotExist(err) {
		t.Errorf("cleanup service written after failure (stat error %v)", err)
	}
}

func TestRunInvalidRelease(t *testing.T) {
	fixture := newFixture(t)
	for _, release := range []string{"..", "5.10/evil", "bad\x00"} {
		generator := fixture.generator(nil)
		generator.Release = release
		_, err := generator.Run()
		testutil.RequireErrorIs(t, err, ErrInvalidRelease, "release %q", release)
	}
}

func TestRunRequiresOutput(t *testing.T) {
	if _, err := (&Generator{Release: testRelease}).Run(); err == nil {
		t.Error("Run without output directory succeeded")
	}
}
