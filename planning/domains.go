package planning

import "sort"

// BlocksWorld asks to invert the tower A/B/C. Its actions cannot clear B,
// so no planner solves it.
func BlocksWorld() *Planner {
	return &Planner{
		Actions: []Action{
			{Name: "move A onto B", Pre: NewState("A_clear", "B_clear", "A_on_table"), Add: NewState("A_on_B"), Del: NewState("A_clear", "B_clear", "A_on_table")},
			{Name: "move A to table", Pre: NewState("A_clear"), Add: NewState("A_on_table", "A_clear")},
			{Name: "move B onto A", Pre: NewState("B_clear", "A_clear", "B_on_table"), Add: NewState("B_on_A"), Del: NewState("B_clear", "A_clear", "B_on_table")},
			{Name: "move C onto B", Pre: NewState("C_clear", "B_clear"), Add: NewState("C_on_B"), Del: NewState("C_clear", "B_clear")},
		},
		Initial: NewState("A_clear", "A_on_B", "B_on_C", "C_on_table"),
		Goal:    NewState("C_on_B", "B_on_A", "A_on_table"),
	}
}

// RobotNavigation moves a robot from room A to D through closed doors.
func RobotNavigation() *Planner {
	return &Planner{
		Actions: []Action{
			{Name: "go A to B", Pre: NewState("robot_in_A", "door_AB_open"), Add: NewState("robot_in_B"), Del: NewState("robot_in_A"), Cost: 1},
			{Name: "go B to C", Pre: NewState("robot_in_B", "door_BC_open"), Add: NewState("robot_in_C"), Del: NewState("robot_in_B"), Cost: 1},
			{Name: "go C to D", Pre: NewState("robot_in_C", "door_CD_open"), Add: NewState("robot_in_D"), Del: NewState("robot_in_C"), Cost: 1},
			{Name: "open door AB", Pre: NewState("robot_in_A"), Add: NewState("door_AB_open"), Cost: 0.5},
			{Name: "open door BC", Pre: NewState("robot_in_B"), Add: NewState("door_BC_open"), Cost: 0.5},
			{Name: "open door CD", Pre: NewState("robot_in_C"), Add: NewState("door_CD_open"), Cost: 0.5},
		},
		Initial: NewState("robot_in_A"),
		Goal:    NewState("robot_in_D"),
	}
}

// ReportAutomation chains collecting, processing, generating, reviewing
// and sending a report.
func ReportAutomation() *Planner {
	return &Planner{
		Actions: []Action{
			{Name: "collect data", Pre: NewState("system_up"), Add: NewState("data_collected")},
			{Name: "process data", Pre: NewState("data_collected", "software_available"), Add: NewState("data_processed")},
			{Name: "generate report", Pre: NewState("data_processed", "template_available"), Add: NewState("report_generated")},
			{Name: "review report", Pre: NewState("report_generated"), Add: NewState("report_reviewed")},
			{Name: "send report", Pre: NewState("report_reviewed", "recipients_confirmed"), Add: NewState("report_sent")},
		},
		Initial: NewState("system_up", "software_available", "template_available", "recipients_confirmed"),
		Goal:    NewState("report_sent"),
	}
}

var domains = map[string]func() *Planner{
	"blocks": BlocksWorld,
	"robot":  RobotNavigation,
	"report": ReportAutomation,
}

func Domain(name string) (*Planner, bool) {
	f, ok := domains[name]
	if !ok {
		return nil, false
	}
	return f(), true
}

func DomainNames() []string {
	names := make([]string, 0, len(domains))
	for n := range domains {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
