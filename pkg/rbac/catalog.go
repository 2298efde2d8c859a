package rbac

import "sort"

// Permission is an opaque capability string granted by roles.
type Permission string

// All permissions known to the platform.
const (
	PermManageUsersAll        Permission = "manage_users_all"
	PermManageUsersDepartment Permission = "manage_users_department"
	PermAssignRoles           Permission = "assign_roles"
	PermManageEvents          Permission = "manage_events"
	PermManageNotices         Permission = "manage_notices"
	PermManageFees            Permission = "manage_fees"
	PermManageLibrary         Permission = "manage_library"
	PermManageAssignments     Permission = "manage_assignments"
	PermGradeAssignments      Permission = "grade_assignments"
	PermManageExams           Permission = "manage_exams"
	PermSubmitLessonPlanner   Permission = "submit_lesson_planner"
	PermApproveLessonPlanner  Permission = "approve_lesson_planner"
	PermSubmitWorkDiary       Permission = "submit_work_diary"
	PermApproveWorkDiaryHOD   Permission = "approve_work_diary_hod"
	PermApproveWorkDiaryPrin  Permission = "approve_work_diary_principal"
	PermIssueLatePass         Permission = "issue_late_pass"
	PermViewReports           Permission = "view_reports"
)

// Module identifies a gated feature area of the application.
type Module string

const (
	ModuleEvents         Module = "events"
	ModuleNotices        Module = "notices"
	ModuleFees           Module = "fees"
	ModuleLibrary        Module = "library"
	ModuleAssignments    Module = "assignments"
	ModuleExams          Module = "exams"
	ModulePlannerDiary   Module = "planner_diary"
	ModuleReception      Module = "reception"
	ModuleUserManagement Module = "user_management"
	ModuleReports        Module = "reports"
)

// moduleGrants maps each module to the permissions that unlock it.
// Holding any one of the listed permissions grants access.
var moduleGrants = map[Module][]Permission{
	ModuleEvents:         {PermManageEvents},
	ModuleNotices:        {PermManageNotices},
	ModuleFees:           {PermManageFees},
	ModuleLibrary:        {PermManageLibrary},
	ModuleAssignments:    {PermManageAssignments, PermGradeAssignments},
	ModuleExams:          {PermManageExams},
	ModulePlannerDiary:   {PermSubmitLessonPlanner, PermApproveLessonPlanner, PermSubmitWorkDiary, PermApproveWorkDiaryHOD, PermApproveWorkDiaryPrin},
	ModuleReception:      {PermIssueLatePass},
	ModuleUserManagement: {PermManageUsersAll, PermManageUsersDepartment, PermAssignRoles},
	ModuleReports:        {PermViewReports},
}

var moduleDisplayNames = map[Module]string{
	ModuleEvents:         "Events",
	ModuleNotices:        "Notices",
	ModuleFees:           "Fees",
	ModuleLibrary:        "Library",
	ModuleAssignments:    "Assignments",
	ModuleExams:          "Exams",
	ModulePlannerDiary:   "Planner & Diary",
	ModuleReception:      "Reception",
	ModuleUserManagement: "User Management",
	ModuleReports:        "Reports",
}

// ModuleDisplayName returns the human-readable name used in denial
// messages. Unknown modules fall back to their raw identifier.
func ModuleDisplayName(m Module) string {
	if name, ok := moduleDisplayNames[m]; ok {
		return name
	}
	return string(m)
}

// ModuleGrants returns a copy of the permissions that unlock a module.
func ModuleGrants(m Module) []Permission {
	grants := moduleGrants[m]
	out := make([]Permission, len(grants))
	copy(out, grants)
	return out
}

// Modules returns every known module in a stable order.
func Modules() []Module {
	out := make([]Module, 0, len(moduleGrants))
	for m := range moduleGrants {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Role is a named bundle of permissions with a precedence rank.
// Higher ranks outrank lower ones when a user holds several roles.
type Role struct {
	Name        string       `json:"name"`
	DisplayName string       `json:"display_name"`
	Rank        int          `json:"rank"`
	Permissions []Permission `json:"permissions"`
}

// NoRole is the sentinel returned when a user holds no active roles.
const NoRole = "no_role"

// Built-in role names, highest precedence first.
const (
	RoleSuperAdmin      = "super_admin"
	RolePrincipal       = "principal"
	RoleVicePrincipal   = "vice_principal"
	RoleDepartmentAdmin = "department_admin"
	RoleHOD             = "hod"
	RoleExamOfficer     = "exam_officer"
	RoleAccountant      = "accountant"
	RoleLibrarian       = "librarian"
	RoleReceptionist    = "receptionist"
	RoleTeacher         = "teacher"
	RoleStudent         = "student"
)

func allPermissions() []Permission {
	return []Permission{
		PermManageUsersAll, PermManageUsersDepartment, PermAssignRoles,
		PermManageEvents, PermManageNotices, PermManageFees,
		PermManageLibrary, PermManageAssignments, PermGradeAssignments,
		PermManageExams, PermSubmitLessonPlanner, PermApproveLessonPlanner,
		PermSubmitWorkDiary, PermApproveWorkDiaryHOD, PermApproveWorkDiaryPrin,
		PermIssueLatePass, PermViewReports,
	}
}

// catalog holds every built-in role keyed by name. Immutable after init.
var catalog = map[string]Role{
	RoleSuperAdmin: {
		Name:        RoleSuperAdmin,
		DisplayName: "Super Admin",
		Rank:        110,
		Permissions: allPermissions(),
	},
	RolePrincipal: {
		Name:        RolePrincipal,
		DisplayName: "Principal",
		Rank:        100,
		Permissions: []Permission{
			PermManageUsersAll, PermAssignRoles,
			PermApproveWorkDiaryPrin, PermApproveLessonPlanner,
			PermManageEvents, PermManageNotices, PermViewReports,
		},
	},
	RoleVicePrincipal: {
		Name:        RoleVicePrincipal,
		DisplayName: "Vice Principal",
		Rank:        90,
		Permissions: []Permission{
			PermManageEvents, PermManageNotices, PermViewReports,
		},
	},
	RoleDepartmentAdmin: {
		Name:        RoleDepartmentAdmin,
		DisplayName: "Department Admin",
		Rank:        80,
		Permissions: []Permission{
			PermManageUsersDepartment, PermAssignRoles, PermViewReports,
		},
	},
	RoleHOD: {
		Name:        RoleHOD,
		DisplayName: "Head of Department",
		Rank:        70,
		Permissions: []Permission{
			PermApproveLessonPlanner, PermApproveWorkDiaryHOD,
			PermManageAssignments, PermGradeAssignments, PermViewReports,
		},
	},
	RoleExamOfficer: {
		Name:        RoleExamOfficer,
		DisplayName: "Exam Officer",
		Rank:        60,
		Permissions: []Permission{PermManageExams, PermViewReports},
	},
	RoleAccountant: {
		Name:        RoleAccountant,
		DisplayName: "Accountant",
		Rank:        55,
		Permissions: []Permission{PermManageFees},
	},
	RoleLibrarian: {
		Name:        RoleLibrarian,
		DisplayName: "Librarian",
		Rank:        50,
		Permissions: []Permission{PermManageLibrary},
	},
	RoleReceptionist: {
		Name:        RoleReceptionist,
		DisplayName: "Receptionist",
		Rank:        45,
		Permissions: []Permission{PermIssueLatePass},
	},
	RoleTeacher: {
		Name:        RoleTeacher,
		DisplayName: "Teacher",
		Rank:        40,
		Permissions: []Permission{
			PermSubmitLessonPlanner, PermSubmitWorkDiary,
			PermManageAssignments, PermGradeAssignments,
		},
	},
	RoleStudent: {
		Name:        RoleStudent,
		DisplayName: "Student",
		Rank:        10,
		Permissions: nil,
	},
}

// LookupRole returns the catalog entry for a role name.
func LookupRole(name string) (Role, bool) {
	r, ok := catalog[name]
	return r, ok
}

// IsKnownRole reports whether name is a built-in role.
func IsKnownRole(name string) bool {
	_, ok := catalog[name]
	return ok
}

// Roles returns all built-in roles ordered by descending rank, so the
// highest-precedence role comes first.
func Roles() []Role {
	out := make([]Role, 0, len(catalog))
	for _, r := range catalog {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			return out[i].Rank > out[j].Rank
		}
		return out[i].Name < out[j].Name
	})
	return out
}
