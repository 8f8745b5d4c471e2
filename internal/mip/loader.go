package mip

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// 问题文件格式（YAML）：
//
//	name: toy
//	sense: max
//	vars:
//	  - {name: x, type: B, obj: 1}
//	  - {name: y, type: I, lb: 0, ub: 5, obj: 2}
//	constraints:
//	  - {name: c0, terms: {x: 1, y: 2}, sense: "<=", rhs: 4}
type problemFile struct {
	Name        string          `yaml:"name"`
	Sense       string          `yaml:"sense"`
	Vars        []problemVar    `yaml:"vars"`
	Constraints []problemConstr `yaml:"constraints"`
}

type problemVar struct {
	Name string   `yaml:"name"`
	Type string   `yaml:"type"`
	LB   *float64 `yaml:"lb"`
	UB   *float64 `yaml:"ub"`
	Obj  float64  `yaml:"obj"`
}

type problemConstr struct {
	Name  string             `yaml:"name"`
	Terms map[string]float64 `yaml:"terms"`
	Sense string             `yaml:"sense"`
	RHS   float64            `yaml:"rhs"`
}

// ReadModel 从 YAML 文件加载模型
func (e *Env) ReadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取问题文件失败: %w", err)
	}
	return e.ParseModel(data)
}

// ParseModel 同一份定义多次解析，变量顺序完全一致
func (e *Env) ParseModel(data []byte) (*Model, error) {
	var pf problemFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&pf); err != nil {
		return nil, fmt.Errorf("解析问题文件失败: %w", err)
	}

	m := e.NewModel(pf.Name)
	switch strings.ToLower(pf.Sense) {
	case "", "min", "minimize":
		m.ObjSense = Minimize
	case "max", "maximize":
		m.ObjSense = Maximize
	default:
		return nil, fmt.Errorf("未知目标方向: %s", pf.Sense)
	}

	byName := make(map[string]*Var, len(pf.Vars))
	for i, pv := range pf.Vars {
		if pv.Name == "" {
			return nil, fmt.Errorf("第 %d 个变量缺少 name", i)
		}
		if _, dup := byName[pv.Name]; dup {
			return nil, fmt.Errorf("变量重名: %s", pv.Name)
		}
		typ, lb, ub, err := varDomain(pv)
		if err != nil {
			return nil, err
		}
		byName[pv.Name] = m.AddVar(pv.Name, typ, lb, ub, pv.Obj)
	}

	for i, pc := range pf.Constraints {
		name := pc.Name
		if name == "" {
			name = fmt.Sprintf("c%d", i)
		}
		sense, err := parseSense(pc.Sense)
		if err != nil {
			return nil, fmt.Errorf("约束 %s: %w", name, err)
		}
		terms := make([]Term, 0, len(pc.Terms))
		for varName, coef := range pc.Terms {
			v, ok := byName[varName]
			if !ok {
				return nil, fmt.Errorf("约束 %s 引用了未声明的变量 %s", name, varName)
			}
			terms = append(terms, Term{Coef: coef, Var: v})
		}
		// map 遍历无序，按变量顺序排好保证可复现
		sort.Slice(terms, func(a, b int) bool { return terms[a].Var.index < terms[b].Var.index })
		if _, err := m.AddConstr(LinExpr{Terms: terms}, sense, pc.RHS, name); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func varDomain(pv problemVar) (VarType, float64, float64, error) {
	var typ VarType
	lb, ub := 0.0, math.Inf(1)
	switch strings.ToUpper(pv.Type) {
	case "", "C", "CONTINUOUS":
		typ = Continuous
	case "B", "BINARY":
		typ = Binary
		ub = 1
	case "I", "INTEGER":
		typ = Integer
	default:
		return 0, 0, 0, fmt.Errorf("变量 %s 类型未知: %s", pv.Name, pv.Type)
	}
	if pv.LB != nil {
		lb = *pv.LB
	}
	if pv.UB != nil {
		ub = *pv.UB
	}
	if ub >= Infinity {
		ub = math.Inf(1)
	}
	if typ == Binary && (lb < 0 || ub > 1) {
		return 0, 0, 0, fmt.Errorf("0/1 变量 %s 的上下界超出 [0,1]", pv.Name)
	}
	return typ, lb, ub, nil
}

func parseSense(s string) (Sense, error) {
	switch strings.TrimSpace(s) {
	case "<=", "<", "le":
		return LessEqual, nil
	case ">=", ">", "ge":
		return GreaterEqual, nil
	case "=", "==", "eq":
		return Equal, nil
	default:
		return 0, fmt.Errorf("未知约束类型 %q", s)
	}
}
