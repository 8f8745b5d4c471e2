package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"mip-lab/internal/db"
	"mip-lab/internal/mip"
	"mip-lab/internal/model"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"
)

// SeedInstances 扫描问题目录，每个 .yaml/.yml 文件登记为一个实例（ID 为去掉扩展名的文件名）。
// 单个文件解析失败不影响其他文件，错误汇总返回
func SeedInstances(ctx context.Context, env *mip.Env, store *db.Store, dir string) ([]model.Instance, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: 读取实例目录失败: %w", ErrConfiguration, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var merr *multierror.Error
	var out []model.Instance
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ext)
		m, err := env.ReadModel(filepath.Join(dir, e.Name()))
		if err != nil {
			merr = multierror.Append(merr, fmt.Errorf("实例 %s: %w", id, err))
			continue
		}
		name := m.Name
		if name == "" {
			name = id
		}
		inst := model.Instance{
			ID:         id,
			Name:       name,
			NumBinVars: m.NumBinVars(),
			NumIntVars: m.NumIntVars(),
		}
		if err := store.UpsertInstance(ctx, &inst); err != nil {
			merr = multierror.Append(merr, err)
			continue
		}
		out = append(out, inst)
	}
	log.Ctx(ctx).Info().Str("dir", dir).Int("instances", len(out)).Msg("实例登记完成")
	return out, merr.ErrorOrNil()
}
