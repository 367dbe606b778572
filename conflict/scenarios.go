package conflict

// GPUScenario builds three agents of different priority competing for two
// GPUs.
func GPUScenario(opts ...Option) *Resolver {
	r := NewResolver("gpu-cluster", opts...)
	r.RegisterAgent(&Agent{ID: "a1", Name: "Alpha", Priority: 10})
	r.RegisterAgent(&Agent{ID: "a2", Name: "Beta", Priority: 5})
	r.RegisterAgent(&Agent{ID: "a3", Name: "Gamma", Priority: 7})
	r.AddResource("GPU_1")
	r.AddResource("GPU_2")

	for _, req := range [][2]string{
		{"a1", "GPU_1"},
		{"a2", "GPU_1"},
		{"a3", "GPU_1"},
		{"a2", "GPU_2"},
		{"a3", "GPU_2"},
	} {
		_ = r.Request(req[0], req[1])
	}
	return r
}

// DatabaseScenario has three services contending for one connection slot.
func DatabaseScenario(opts ...Option) *Resolver {
	r := NewResolver("services", opts...)
	r.RegisterAgent(&Agent{ID: "svc1", Name: "Web Service", Priority: 8})
	r.RegisterAgent(&Agent{ID: "svc2", Name: "Backend Service", Priority: 9})
	r.RegisterAgent(&Agent{ID: "svc3", Name: "Analytics Service", Priority: 6})
	r.AddResource("database_connection")
	for _, id := range []string{"svc1", "svc2", "svc3"} {
		_ = r.Request(id, "database_connection")
	}
	return r
}

// InversionScenario has a low-priority batch job holding the build runner
// while the release pipeline waits for it.
func InversionScenario(opts ...Option) *Resolver {
	r := NewResolver("build-farm", opts...)
	r.RegisterAgent(&Agent{ID: "batch", Name: "Batch Reindex", Priority: 2, Resources: []string{"runner"}})
	r.RegisterAgent(&Agent{ID: "release", Name: "Release Pipeline", Priority: 9})
	r.RegisterAgent(&Agent{ID: "nightly", Name: "Nightly Report", Priority: 4, Resources: []string{"cache"}})
	r.AddResource("runner")
	r.AddResource("cache")
	_ = r.Request("release", "runner")
	_ = r.Request("batch", "cache")
	return r
}
