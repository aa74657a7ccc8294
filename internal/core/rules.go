package core

// NewDefaultRulesEngine builds a rules engine with the built-in integrity rules.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(MembershipIntegrityRule())
	engine.Register(SampleAlignmentIntegrityRule())
	return engine
}

func touches(changes []Change, entities ...EntityType) bool {
	for _, change := range changes {
		for _, entity := range entities {
			if change.Entity == entity {
				return true
			}
		}
	}
	return false
}
