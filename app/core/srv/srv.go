package srv

type Srv struct {
	ai *AI
}

type ApplyFunc func(*Srv)

func SetupSrvs(opts ...ApplyFunc) *Srv {
	a := &Srv{}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func ApplyAI(cfg AIConfig) ApplyFunc {
	return func(s *Srv) {
		ai, err := SetupAI(cfg)
		if err != nil {
			panic(err)
		}
		s.ai = ai
	}
}

func (s *Srv) AI() AIDriver {
	return s.ai
}

// AIStatus 运维接口暴露的模型侧状态
func (s *Srv) AIStatus() map[string]interface{} {
	if s.ai == nil {
		return map[string]interface{}{
			"status": "not_initialized",
		}
	}
	return map[string]interface{}{
		"status":            "running",
		"driver":            s.ai.Name(),
		"trainer_available": s.ai.Trainer() != nil,
	}
}
