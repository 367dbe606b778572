package allocation

// SoftwareTeam is four developers and eight engineering tasks, with
// shared compute and time budgets.
func SoftwareTeam() *Allocator {
	al := New("software-team")
	al.RegisterAgent(&Agent{ID: "dev1", Name: "Alice (Backend)", Skills: []string{"Python", "API", "Database"}, Capacity: 3, Efficiency: 0.95})
	al.RegisterAgent(&Agent{ID: "dev2", Name: "Bob (Frontend)", Skills: []string{"React", "CSS", "JavaScript"}, Capacity: 3, Efficiency: 0.90})
	al.RegisterAgent(&Agent{ID: "dev3", Name: "Carol (Fullstack)", Skills: []string{"Python", "React", "API", "Database"}, Capacity: 2, Efficiency: 0.85})
	al.RegisterAgent(&Agent{ID: "dev4", Name: "David (DevOps)", Skills: []string{"Docker", "CI/CD", "Cloud"}, Capacity: 4, Efficiency: 0.92})

	for _, t := range []*Task{
		{ID: "t1", Name: "Design REST API", RequiredSkills: []string{"Python", "API"}, Priority: 9, EstimatedHours: 8},
		{ID: "t2", Name: "Build UI components", RequiredSkills: []string{"React", "CSS"}, Priority: 8, EstimatedHours: 6},
		{ID: "t3", Name: "Integrate database", RequiredSkills: []string{"Python", "Database"}, Priority: 7, EstimatedHours: 5},
		{ID: "t4", Name: "Set up CI/CD", RequiredSkills: []string{"CI/CD", "Docker"}, Priority: 8, EstimatedHours: 4},
		{ID: "t5", Name: "API tests", RequiredSkills: []string{"Python", "API"}, Priority: 6, EstimatedHours: 3},
		{ID: "t6", Name: "Optimize queries", RequiredSkills: []string{"Database", "Python"}, Priority: 5, EstimatedHours: 4},
		{ID: "t7", Name: "Cloud deploy", RequiredSkills: []string{"Cloud", "Docker"}, Priority: 7, EstimatedHours: 3},
		{ID: "t8", Name: "Responsive design", RequiredSkills: []string{"CSS", "React"}, Priority: 5, EstimatedHours: 4},
	} {
		al.AddTask(t)
	}
	al.AddResource(NewResource(Compute, 16, "cores"))
	al.AddResource(NewResource(Time, 40, "hours"))
	return al
}

// CustomerService is three support agents and eight tickets.
func CustomerService() *Allocator {
	al := New("customer-service")
	al.RegisterAgent(&Agent{ID: "agent1", Name: "Ana (Sales)", Skills: []string{"Sales", "Products", "Quotes"}, Capacity: 5, Efficiency: 1})
	al.RegisterAgent(&Agent{ID: "agent2", Name: "Luis (Support)", Skills: []string{"Support", "Technical", "Troubleshooting"}, Capacity: 4, Efficiency: 1})
	al.RegisterAgent(&Agent{ID: "agent3", Name: "Maria (General)", Skills: []string{"Sales", "Support", "Information"}, Capacity: 6, Efficiency: 1})

	for _, t := range []*Task{
		{ID: "ticket1", Name: "Pricing question", RequiredSkills: []string{"Sales"}, Priority: 8, EstimatedHours: 0.5},
		{ID: "ticket2", Name: "Login error", RequiredSkills: []string{"Support", "Technical"}, Priority: 9, EstimatedHours: 1},
		{ID: "ticket3", Name: "Product info", RequiredSkills: []string{"Sales", "Products"}, Priority: 6, EstimatedHours: 0.5},
		{ID: "ticket4", Name: "Connection problem", RequiredSkills: []string{"Support", "Technical"}, Priority: 10, EstimatedHours: 1.5},
		{ID: "ticket5", Name: "Quote request", RequiredSkills: []string{"Sales", "Quotes"}, Priority: 7, EstimatedHours: 1},
		{ID: "ticket6", Name: "General information", RequiredSkills: []string{"Information"}, Priority: 5, EstimatedHours: 0.25},
		{ID: "ticket7", Name: "Reinstall app", RequiredSkills: []string{"Support"}, Priority: 8, EstimatedHours: 1},
		{ID: "ticket8", Name: "Available discounts", RequiredSkills: []string{"Sales"}, Priority: 6, EstimatedHours: 0.5},
	} {
		al.AddTask(t)
	}
	return al
}

// Scenario looks up a canned allocator by name.
func Scenario(name string) (*Allocator, bool) {
	switch name {
	case "software", "software-team":
		return SoftwareTeam(), true
	case "support", "customer-service":
		return CustomerService(), true
	}
	return nil, false
}
