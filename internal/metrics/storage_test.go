package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dfOutput = `/dev/sda1 | 1000M | 400M | 600M | 40% | / split
/dev/sdb1 | 2048M | 1024M | 1024M | 50% | /data split
`

const diskstatsOutput = `sda 2048 4096 split
sda1 1024 2048 split
nvme0n1 6144 0 split
`

func TestParseDiskFree(t *testing.T) {
	t.Run("single record", func(t *testing.T) {
		mounts := ParseDiskFree("/dev/sda1 | 1000M | 400M | 600M | 40% | /")

		require.Len(t, mounts, 1)
		assert.Equal(t, Mount{
			FileSystem:  "/dev/sda1",
			Size:        1000,
			Used:        400,
			Available:   600,
			PercentUsed: 40,
			MountedOn:   "/",
		}, mounts[0])
	})

	t.Run("multiple records", func(t *testing.T) {
		mounts := ParseDiskFree(dfOutput)

		require.Len(t, mounts, 2)
		assert.Equal(t, "/data", mounts[1].MountedOn)
		assert.Equal(t, 50, mounts[1].PercentUsed)
	})

	t.Run("short records are dropped", func(t *testing.T) {
		mounts := ParseDiskFree("/dev/sda1 | 1000M | 400M split /dev/sdb1 | 10M | 5M | 5M | 50% | /b split")

		require.Len(t, mounts, 1)
		assert.Equal(t, "/dev/sdb1", mounts[0].FileSystem)
	})

	t.Run("unparsable numbers default to zero", func(t *testing.T) {
		mounts := ParseDiskFree("overlay | - | - | - | - | /mnt split")

		require.Len(t, mounts, 1)
		assert.Zero(t, mounts[0].Size)
		assert.Zero(t, mounts[0].PercentUsed)
		assert.Equal(t, "/mnt", mounts[0].MountedOn)
	})
}

func TestParseDiskStats(t *testing.T) {
	devices := ParseDiskStats(diskstatsOutput)

	require.Len(t, devices, 3)
	assert.Equal(t, DeviceIO{Name: "sda", Reads: 2048, Writes: 4096}, devices[0])
	assert.Equal(t, DeviceIO{Name: "nvme0n1", Reads: 6144, Writes: 0}, devices[2])

	odd := ParseDiskStats("sda 12 split sdb 1 2 split sdc 1 2 3 split")
	require.Len(t, odd, 1, "records need exactly three fields")
	assert.Equal(t, "sdb", odd[0].Name)
}

func TestParseStorage(t *testing.T) {
	snap := ParseStorage(dfOutput, diskstatsOutput)

	assert.Len(t, snap.Mounts, 2)
	assert.Len(t, snap.Devices, 3)
	assert.Equal(t, 4.5, snap.ReadsMB())
	assert.Equal(t, 3.0, snap.WritesMB())

	empty := ParseStorage("", "")
	assert.NotNil(t, empty.Mounts)
	assert.NotNil(t, empty.Devices)
	assert.Zero(t, empty.ReadsMB())
	assert.Zero(t, empty.WritesMB())
}
