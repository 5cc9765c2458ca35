package token

import (
	"context"
	"fmt"
	"math/big"

	"github.com/cellpay/spillman-sdk-go/types"
	"github.com/cellpay/spillman-sdk-go/utils"
)

// GetBalance 查询单个身份名下的余额
//
// 汇总该身份单签锁名下的全部活跃 cell：容量直接累加；类型脚本与配置
// 代币一致的 cell 另计代币数量，数据残缺的 cell 跳过不计。
func (s *tokenService) GetBalance(ctx context.Context, identity []byte) (*Balance, error) {
	if len(identity) != 20 {
		return nil, fmt.Errorf("identity must be 20 bytes, got %d", len(identity))
	}

	cells, err := s.ledger.GetCells(ctx, s.cfg.SighashLock(identity), 0)
	if err != nil {
		return nil, fmt.Errorf("collect cells: %w", err)
	}

	balance := &Balance{
		Identity: identity,
		Token:    new(big.Int),
		Cells:    len(cells),
	}

	var tokenScript *types.Script
	if s.cfg.Token != nil {
		tokenScript = s.cfg.Token.TokenScript()
	}

	for i := range cells {
		balance.Capacity += cells[i].Output.Capacity
		if tokenScript == nil || !cells[i].Output.Type.Equal(tokenScript) {
			continue
		}
		amount, err := types.DecodeTokenAmount(cells[i].Data)
		if err != nil {
			continue
		}
		balance.Token.Add(balance.Token, amount)
	}

	return balance, nil
}

// GetBalances 批量查询多个身份的余额
func (s *tokenService) GetBalances(ctx context.Context, identities [][]byte) ([]*Balance, error) {
	result, err := utils.BatchQuery(ctx, identities,
		func(ctx context.Context, identity []byte, index int) (*Balance, error) {
			return s.GetBalance(ctx, identity)
		}, nil)
	if err != nil {
		return nil, err
	}
	if result.Failed > 0 {
		return nil, fmt.Errorf("balance query failed for %d of %d identities: %v",
			result.Failed, result.Total, result.Errors[0].Error)
	}
	return result.Results, nil
}
