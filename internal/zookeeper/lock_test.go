package zookeeper

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequenceOrdering(t *testing.T) {
	// 受保护节点的 guid 前缀不能影响排序
	children := []string{
		"_c_ffff-lock-0000000003",
		"_c_0000-lock-0000000010",
		"_c_aaaa-lock-0000000001",
	}
	sort.Slice(children, func(i, j int) bool { return sequenceOf(children[i]) < sequenceOf(children[j]) })

	assert.Equal(t, []string{
		"_c_aaaa-lock-0000000001",
		"_c_ffff-lock-0000000003",
		"_c_0000-lock-0000000010",
	}, children)
	assert.Equal(t, "plain", sequenceOf("plain"))
}

func TestUnlockWithoutLock(t *testing.T) {
	l := &DistributedLock{path: lockRoot + "/x"}
	assert.Error(t, l.Unlock())
}
