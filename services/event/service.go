package event

import (
	"context"
	"fmt"

	"github.com/cellpay/spillman-sdk-go/client"
	"github.com/cellpay/spillman-sdk-go/types"
)

// 通道事件主题
const (
	TopicCellConsumed = "cell_consumed" // 通道 cell 被花费（结算或退款上链）
	TopicCellCreated  = "cell_created"  // 新通道 cell 出现
)

// Service 通道监视服务接口
//
// 商户用它监视通道 cell 是否被抢先花费；用户用它确认结算或退款落块。
type Service interface {
	// WatchLock 订阅某个锁脚本名下 cell 的变更事件
	WatchLock(ctx context.Context, lock *types.Script, topics ...string) (<-chan *ChannelEvent, error)
}

// eventService 通道监视服务实现
type eventService struct {
	rpc client.Client
}

// NewService 创建通道监视服务
func NewService(rpc client.Client) Service {
	return &eventService{
		rpc: rpc,
	}
}

// ChannelEvent 通道 cell 变更事件
type ChannelEvent struct {
	Topic    string // 事件主题
	LockHash []byte // 被订阅锁脚本的哈希
	Data     []byte // 事件负载（节点编码的交易引用）
}

// WatchLock 订阅某个锁脚本名下 cell 的变更事件
//
// topics 为空时订阅全部主题。底层连接关闭后事件通道随之关闭。
func (s *eventService) WatchLock(ctx context.Context, lock *types.Script, topics ...string) (<-chan *ChannelEvent, error) {
	if lock == nil {
		return nil, fmt.Errorf("lock script is required")
	}

	lockHash := lock.Hash()
	eventChan, err := s.rpc.Subscribe(ctx, &client.EventFilter{
		Topics: topics,
		Lock:   lockHash,
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe lock events: %w", err)
	}

	out := make(chan *ChannelEvent, 10)
	go func() {
		defer close(out)
		for ev := range eventChan {
			out <- &ChannelEvent{
				Topic:    ev.Topic,
				LockHash: lockHash,
				Data:     ev.Data,
			}
		}
	}()

	return out, nil
}
