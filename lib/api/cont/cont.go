package cont

import (
	"context"
	"refhub/entity"
)

type ctxKey string

const (
	AdminDataKey   ctxKey = "adminData"
	StudentDataKey ctxKey = "studentData"
)

func PutAdmin(c context.Context, admin *entity.Admin) context.Context {
	return context.WithValue(c, AdminDataKey, *admin)
}

// GetAdmin returns the authenticated admin, or nil when the request was not
// authenticated as an admin.
func GetAdmin(c context.Context) *entity.Admin {
	admin, ok := c.Value(AdminDataKey).(entity.Admin)
	if !ok {
		return nil
	}
	return &admin
}

func PutStudent(c context.Context, student *entity.Student) context.Context {
	return context.WithValue(c, StudentDataKey, *student)
}

func GetStudent(c context.Context) *entity.Student {
	student, ok := c.Value(StudentDataKey).(entity.Student)
	if !ok {
		return nil
	}
	return &student
}
