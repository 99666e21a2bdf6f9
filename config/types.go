// Package config parses and validates operator-supplied desired-state
// documents. It never touches the database; the reconciliation engine
// receives its output as an already validated mapping.
package config

// Document is the root of a desired-state file. Each resource reconciles
// independently, in file order.
type Document struct {
	Resources []Resource `yaml:"resources" validate:"required,min=1,dive"`
}

// Resource names one database object and the state it must converge to.
type Resource struct {
	Kind  string `yaml:"kind" validate:"required,oneof=grant tablespace user role directory pdb"`
	State string `yaml:"state" validate:"omitempty,oneof=present absent identical"`

	Grant      *GrantSpec      `yaml:"grant,omitempty"`
	Tablespace *TablespaceSpec `yaml:"tablespace,omitempty"`
	User       *UserSpec       `yaml:"user,omitempty"`
	Role       *RoleSpec       `yaml:"role,omitempty"`
	Directory  *DirectorySpec  `yaml:"directory,omitempty"`
	PDB        *PDBSpec        `yaml:"pdb,omitempty"`
}

// GrantSpec describes the full privilege surface of one grantee.
type GrantSpec struct {
	Grantee    string        `yaml:"grantee" validate:"required"`
	Privileges []string      `yaml:"privileges"`
	Roles      []string      `yaml:"roles"`
	Objects    []ObjectGrant `yaml:"objects" validate:"dive"`
}

// ObjectGrant is one (object, privilege) pair held by a grantee.
type ObjectGrant struct {
	Owner     string `yaml:"owner" validate:"required"`
	Name      string `yaml:"name" validate:"required"`
	Type      string `yaml:"type,omitempty"`
	Privilege string `yaml:"privilege" validate:"required"`
}

// TablespaceSpec describes a tablespace and its datafiles. Size,
// autoextend, next and max apply to every listed datafile.
type TablespaceSpec struct {
	Name       string   `yaml:"name" validate:"required"`
	Content    string   `yaml:"content" validate:"omitempty,oneof=permanent temp undo"`
	Bigfile    bool     `yaml:"bigfile"`
	Datafiles  []string `yaml:"datafiles"`
	Size       string   `yaml:"size"`
	Autoextend bool     `yaml:"autoextend"`
	Next       string   `yaml:"next"`
	Max        string   `yaml:"max"`
	Offline    bool     `yaml:"offline"`
	ReadOnly   bool     `yaml:"read_only"`
	Default    bool     `yaml:"default"`
}

// UserSpec describes a database user/schema. Nil booleans mean "leave the
// current setting alone".
type UserSpec struct {
	Name                string `yaml:"name" validate:"required"`
	AuthenticationType  string `yaml:"authentication_type" validate:"omitempty,oneof=password external global none"`
	Password            string `yaml:"password"`
	DefaultTablespace   string `yaml:"default_tablespace"`
	TemporaryTablespace string `yaml:"temporary_tablespace"`
	Profile             string `yaml:"profile"`
	Locked              *bool  `yaml:"locked"`
	Expired             *bool  `yaml:"expired"`
	Empty               bool   `yaml:"empty"`
}

// RoleSpec describes a database role.
type RoleSpec struct {
	Name             string `yaml:"name" validate:"required"`
	IdentifiedMethod string `yaml:"identified_method" validate:"omitempty,oneof=none password application external global"`
	IdentifiedValue  string `yaml:"identified_value"`
}

// DirectorySpec describes a directory object.
type DirectorySpec struct {
	Name string `yaml:"name" validate:"required"`
	Path string `yaml:"path"`
}

// PDBSpec describes a pluggable database.
type PDBSpec struct {
	Name            string        `yaml:"name" validate:"required"`
	OpenMode        string        `yaml:"open_mode" validate:"omitempty,oneof=read_write read_only mounted"`
	AdminUser       string        `yaml:"admin_user"`
	AdminPassword   string        `yaml:"admin_password"`
	FileNameConvert []ConvertPair `yaml:"file_name_convert" validate:"dive"`
}

// ConvertPair is one source/target path mapping used when cloning a PDB
// from the seed.
type ConvertPair struct {
	From string `yaml:"from" validate:"required"`
	To   string `yaml:"to" validate:"required"`
}
