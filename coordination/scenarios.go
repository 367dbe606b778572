package coordination

// Research registers a three-person research team and returns the task
// they coordinate on.
func Research() (*Coordinator, Task) {
	c := NewCoordinator("research")
	c.Register(NewAgent("ds1", "Data Scientist", "data_analysis", "statistics", "ml"))
	c.Register(NewAgent("lit1", "Literature Expert", "literature_review", "bibliography", "text_analysis"))
	c.Register(NewAgent("wr1", "Scientific Writer", "writing", "publishing", "formatting"))
	return c, Task{
		Description: "Research on AI in education",
		Subtasks: []Subtask{
			{ID: "st1", Capability: "literature_review", Description: "Review papers from the last five years"},
			{ID: "st2", Capability: "data_analysis", Description: "Analyze case study data"},
			{ID: "st3", Capability: "writing", Description: "Draft the paper"},
		},
	}
}

// Emergency registers police, fire and medical responders.
func Emergency() (*Coordinator, Task) {
	c := NewCoordinator("emergency")
	c.Register(NewAgent("pol1", "Police", "security", "order"))
	c.Register(NewAgent("fire1", "Fire Brigade", "fire", "rescue"))
	c.Register(NewAgent("med1", "Ambulance", "health", "first_aid"))
	return c, Task{
		Description: "Building fire with people trapped",
		Subtasks: []Subtask{
			{ID: "e1", Capability: "security", Description: "Cordon off the area and control traffic"},
			{ID: "e2", Capability: "fire", Description: "Put out the fire and rescue people"},
			{ID: "e3", Capability: "health", Description: "Treat the injured and transport them"},
		},
	}
}
