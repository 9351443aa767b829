package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type NodeStatus string

const (
	NodeStatusOnline  NodeStatus = "online"
	NodeStatusOffline NodeStatus = "offline"
)

// DefaultOfflineThreshold 超过该时长未收到心跳的节点视为离线
const DefaultOfflineThreshold = 30 * time.Second

type Node struct {
	ID         string     `gorm:"primaryKey;size:64" json:"id"`
	ProjectKey string     `gorm:"size:64;not null;index" json:"project_key"`
	Name       string     `gorm:"size:128;not null" json:"name"`
	Tags       Tags       `gorm:"column:tags_json;type:text;not null" json:"tags"`
	Version    *string    `gorm:"size:64" json:"version,omitempty"`
	LastSeen   *time.Time `gorm:"index" json:"last_seen,omitempty"`
	Status     string     `gorm:"size:32;not null;default:offline" json:"status"`
}

func (Node) TableName() string { return "nodes" }

// Liveness 返回节点基于 last_seen 推导出的在线状态
func (n *Node) Liveness(threshold time.Duration, now time.Time) NodeStatus {
	return DeriveLiveness(n.LastSeen, threshold, now)
}

// DisplayStatus 列表展示用状态：过期节点一律显示 offline，否则显示节点上报的状态
func (n *Node) DisplayStatus(threshold time.Duration, now time.Time) string {
	if n.Liveness(threshold, now) == NodeStatusOffline {
		return string(NodeStatusOffline)
	}
	if n.Status == "" {
		return string(NodeStatusOnline)
	}
	return n.Status
}

// DeriveLiveness 纯函数：last_seen 为空或距今超过 threshold 即离线
func DeriveLiveness(lastSeen *time.Time, threshold time.Duration, now time.Time) NodeStatus {
	if lastSeen == nil {
		return NodeStatusOffline
	}
	if now.Sub(*lastSeen) > threshold {
		return NodeStatusOffline
	}
	return NodeStatusOnline
}

// Tags is stored as a JSON array in a text column.
type Tags []string

func (t Tags) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(t))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (t *Tags) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*t = Tags{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("unsupported tags column type %T", src)
	}
	if len(raw) == 0 {
		*t = Tags{}
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("decoding tags: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	*t = out
	return nil
}
