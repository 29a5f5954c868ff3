package schema

// View names used across the membership service
const (
	ViewLoginInfo     = "LoginInfo"
	ViewCreateMember  = "CreateMember"
	ViewVerifyMember  = "VerifyMember"
	ViewProfile       = "Profile"
	ViewUpdateProfile = "UpdateProfile"
	ViewFullProfile   = "FullProfile"
	ViewMemberList    = "MemberList"
)

// RegisterDefaults declares the membership storage schema and the standard
// views over it. Called once at startup, before Freeze.
func RegisterDefaults(r *Registry) error {
	if err := r.RegisterTable("members",
		"id", "name", "email", "password", "salt",
		"phone", "avatar_url", "country", "address", "city", "state", "zip_code",
		"disabled", "created_at",
	); err != nil {
		return err
	}

	if err := r.RegisterTable("member_permissions",
		"id", "member_id", "group_name", "signature",
	); err != nil {
		return err
	}

	views := []struct {
		name   string
		fields []ViewField
	}{
		{ViewLoginInfo, []ViewField{
			{"id", "members.id"},
			{"name", "members.name"},
			{"email", "members.email"},
		}},
		{ViewCreateMember, []ViewField{
			{"email", "members.email"},
			{"name", "members.name"},
			{"password", "members.password"},
		}},
		{ViewVerifyMember, []ViewField{
			{"id", "members.id"},
			{"name", "members.name"},
			{"email", "members.email"},
		}},
		{ViewProfile, []ViewField{
			{"email", "members.email"},
			{"name", "members.name"},
			{"phone", "members.phone"},
			{"avatar_url", "members.avatar_url"},
			{"country", "members.country"},
			{"address", "members.address"},
			{"city", "members.city"},
			{"state", "members.state"},
			{"zip_code", "members.zip_code"},
			{"created", "members.created_at"},
		}},
		{ViewUpdateProfile, []ViewField{
			{"email", "members.email"},
			{"name", "members.name"},
			{"phone", "members.phone"},
			{"country", "members.country"},
			{"address", "members.address"},
			{"city", "members.city"},
			{"state", "members.state"},
			{"zip_code", "members.zip_code"},
		}},
		{ViewFullProfile, []ViewField{
			{"id", "members.id"},
			{"email", "members.email"},
			{"name", "members.name"},
			{"phone", "members.phone"},
			{"avatar_url", "members.avatar_url"},
			{"country", "members.country"},
			{"address", "members.address"},
			{"city", "members.city"},
			{"state", "members.state"},
			{"zip_code", "members.zip_code"},
			{"disabled", "members.disabled"},
			{"created", "members.created_at"},
		}},
		{ViewMemberList, []ViewField{
			{"id", "members.id"},
			{"email", "members.email"},
			{"name", "members.name"},
			{"avatar_url", "members.avatar_url"},
			{"disabled", "members.disabled"},
			{"created", "members.created_at"},
		}},
	}

	for _, v := range views {
		if err := r.RegisterView(v.name, v.fields); err != nil {
			return err
		}
	}

	return nil
}
