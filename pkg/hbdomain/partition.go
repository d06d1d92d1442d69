package hbdomain

import (
	"fmt"
	"github.com/zeebo/xxh3"
)

// fixed cardinality of the overdue-check index's partition key. changing this requires
// re-writing check_partition of every stored monitor.
const PartitionCount = 8

// coarse sharding key for the (check_partition, next_due_at) index. not a business
// attribute: only there so that overdue scans fan out over several index partitions.
func PartitionFor(slug string) string {
	return partitionName(xxh3.HashString(slug) % PartitionCount)
}

func Partitions() []string {
	partitions := []string{}
	for i := uint64(0); i < PartitionCount; i++ {
		partitions = append(partitions, partitionName(i))
	}

	return partitions
}

func partitionName(bucket uint64) string {
	return fmt.Sprintf("CHECK-%d", bucket)
}
