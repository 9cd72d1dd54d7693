package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qgraph/internal/ir"
)

const blogCUE = `
model: User: {
	table: "users"
	fields: {
		id:        {type: "Int", id: true, default: "autoincrement"}
		email:     {type: "String", unique: true}
		firstName: {type: "String"}
		lastName:  {type: "String"}
	}
	relations: {
		posts:   {model: "Post", list: true}
		profile: {model: "Profile", optional: true}
		groups:  {model: "Group", list: true}
	}
	unique: [["firstName", "lastName"]]
}

model: Profile: {
	fields: {
		id:     {type: "Int", id: true, default: "autoincrement"}
		bio:    {type: "String", default: ""}
		userId: {type: "Int", unique: true}
	}
	relations: user: {model: "User", fields: ["userId"], references: ["id"]}
}

model: Post: {
	fields: {
		id:        {type: "Int", id: true, default: "autoincrement"}
		title:     {type: "String"}
		views:     {type: "Int", default: 0}
		authorId:  {type: "Int", optional: true}
		createdAt: {type: "DateTime", default: "now"}
	}
	relations: author: {model: "User", fields: ["authorId"], references: ["id"], optional: true}
}

model: Group: {
	fields: {
		id:   {type: "String", id: true, default: "uuid"}
		name: {type: "String", unique: true}
	}
	relations: members: {model: "User", list: true}
}
`

func compileBlog(t *testing.T) *Schema {
	t.Helper()
	s, err := CompileString(blogCUE)
	require.NoError(t, err)
	return s
}

func TestCompileModelsInDeclarationOrder(t *testing.T) {
	s := compileBlog(t)

	names := make([]string, len(s.Models))
	for i, m := range s.Models {
		names[i] = m.Name
	}
	assert.Equal(t, []string{"User", "Profile", "Post", "Group"}, names)

	user, ok := s.Model("User")
	require.True(t, ok)
	assert.Equal(t, "users", user.Table)
	assert.Equal(t, []string{"id", "email", "firstName", "lastName"}, user.ScalarNames())
	assert.Equal(t, []string{"id"}, user.PrimaryKey)

	post, _ := s.Model("Post")
	assert.Equal(t, "Post", post.Table)
}

func TestCompileDefaults(t *testing.T) {
	s := compileBlog(t)
	post, _ := s.Model("Post")
	group, _ := s.Model("Group")
	profile, _ := s.Model("Profile")

	assert.True(t, post.Scalar("id").IsAutoincrement())
	assert.Equal(t, &Default{Kind: DefaultValue, Value: ir.IRInt(0)}, post.Scalar("views").Default)
	assert.Equal(t, DefaultNow, post.Scalar("createdAt").Default.Kind)
	assert.Equal(t, DefaultUUID, group.Scalar("id").Default.Kind)
	assert.Equal(t, &Default{Kind: DefaultValue, Value: ir.IRString("")}, profile.Scalar("bio").Default)
	assert.False(t, post.Scalar("authorId").Required)
}

func TestRelationKindsAndInlining(t *testing.T) {
	s := compileBlog(t)
	user, _ := s.Model("User")
	post, _ := s.Model("Post")

	posts := user.Relation("posts")
	require.NotNil(t, posts)
	assert.Equal(t, OneToMany, posts.Kind())
	assert.False(t, posts.IsInlinedOnEnclosingModel())
	assert.True(t, posts.IsInlinedOnRelatedModel())
	assert.Equal(t, []string{"id"}, posts.LinkingFields())
	assert.Equal(t, []string{"authorId"}, posts.RelatedField().LinkingFields())
	assert.Equal(t, post.Relation("author"), posts.RelatedField())
	assert.Equal(t, "PostToUser", posts.Relation)
	assert.False(t, posts.ForeignKeyRequired())

	profile := user.Relation("profile")
	assert.Equal(t, OneToOne, profile.Kind())
	assert.True(t, profile.ForeignKeyRequired())

	groups := user.Relation("groups")
	assert.Equal(t, ManyToMany, groups.Kind())
	assert.Equal(t, "_GroupToUser", groups.JoinTable())
	own, other := groups.JoinColumns()
	assert.Equal(t, "B", own)
	assert.Equal(t, "A", other)
	own, other = groups.RelatedField().JoinColumns()
	assert.Equal(t, "A", own)
	assert.Equal(t, "B", other)
	assert.Equal(t, []string{"id"}, groups.LinkingFields())
}

func TestUniqueCriteriaOrder(t *testing.T) {
	s := compileBlog(t)
	user, _ := s.Model("User")

	criteria := user.UniqueCriteria()
	require.Len(t, criteria, 3)
	assert.Equal(t, []string{"id"}, criteria[0].Fields)
	assert.Equal(t, []string{"email"}, criteria[1].Fields)
	assert.Equal(t, UniqueIndex{Name: "firstName_lastName", Fields: []string{"firstName", "lastName"}}, criteria[2])

	compound, ok := user.Compound("firstName_lastName")
	require.True(t, ok)
	assert.Equal(t, []string{"firstName", "lastName"}, compound.Fields)

	assert.True(t, user.IsUniqueCriterion([]string{"lastName", "firstName"}))
	assert.False(t, user.IsUniqueCriterion([]string{"firstName"}))
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "missing id",
			src:  `model: A: fields: name: {type: "String"}`,
			want: "model has no id",
		},
		{
			name: "unknown type",
			src:  `model: A: fields: id: {type: "Decimal", id: true}`,
			want: `unknown type "Decimal"`,
		},
		{
			name: "unknown related model",
			src: `model: A: {
				fields: id: {type: "Int", id: true}
				relations: b: {model: "B"}
			}`,
			want: `unknown related model "B"`,
		},
		{
			name: "no opposite side",
			src: `
				model: A: {
					fields: {id: {type: "Int", id: true}, bId: {type: "Int"}}
					relations: b: {model: "B", fields: ["bId"], references: ["id"]}
				}
				model: B: fields: id: {type: "Int", id: true}`,
			want: "no opposite relation field",
		},
		{
			name: "to-one side without fields",
			src: `
				model: A: {
					fields: id: {type: "Int", id: true}
					relations: b: {model: "B"}
				}
				model: B: {
					fields: id: {type: "Int", id: true}
					relations: as: {model: "A", list: true}
				}`,
			want: "must declare fields",
		},
		{
			name: "references not unique",
			src: `
				model: A: {
					fields: {id: {type: "Int", id: true}, bName: {type: "String"}}
					relations: b: {model: "B", fields: ["bName"], references: ["name"]}
				}
				model: B: {
					fields: {id: {type: "Int", id: true}, name: {type: "String"}}
					relations: as: {model: "A", list: true}
				}`,
			want: "references must be an id or unique criterion",
		},
		{
			name: "autoincrement on string",
			src:  `model: A: fields: id: {type: "String", id: true, default: "autoincrement"}`,
			want: "autoincrement requires an Int field",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileString(tt.src)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSelfRelation(t *testing.T) {
	s, err := CompileString(`
		model: Employee: {
			fields: {
				id:        {type: "Int", id: true}
				managerId: {type: "Int", optional: true}
			}
			relations: {
				manager: {model: "Employee", relation: "Reports", fields: ["managerId"], references: ["id"], optional: true}
				reports: {model: "Employee", relation: "Reports", list: true}
			}
		}`)
	require.NoError(t, err)

	e, _ := s.Model("Employee")
	assert.Equal(t, e.Relation("reports"), e.Relation("manager").RelatedField())
	assert.Equal(t, OneToMany, e.Relation("manager").Kind())
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blog.cue"), []byte(blogCUE), 0o644))

	s, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Len(t, s.Models, 4)
}

func TestLoadDirUnifiesPackagelessFiles(t *testing.T) {
	dir := t.TempDir()
	users := `model: User: {
	fields: id: {type: "Int", id: true, default: "autoincrement"}
	relations: posts: {model: "Post", list: true}
}
`
	posts := `model: Post: {
	fields: {
		id:       {type: "Int", id: true, default: "autoincrement"}
		authorId: {type: "Int"}
	}
	relations: author: {model: "User", fields: ["authorId"], references: ["id"]}
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "user.cue"), []byte(users), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "post.cue"), []byte(posts), 0o644))

	s, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, s.Models, 2)
	_, ok := s.Model("User")
	assert.True(t, ok)
	post, ok := s.Model("Post")
	require.True(t, ok)
	assert.Len(t, post.Relations, 1)
}

func TestLoadDirErrors(t *testing.T) {
	_, err := LoadDir(filepath.Join(t.TempDir(), "missing"))
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeNotFound, le.Code)

	_, err = LoadDir(t.TempDir())
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeNoFiles, le.Code)
}

func TestLoadFileOrDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "blog.cue")
	require.NoError(t, os.WriteFile(file, []byte(blogCUE), 0o644))

	fromFile, err := Load(file)
	require.NoError(t, err)
	fromDir, err := Load(dir)
	require.NoError(t, err)
	assert.Len(t, fromFile.Models, len(fromDir.Models))

	_, err = Load(filepath.Join(dir, "missing.cue"))
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeNotFound, le.Code)
}
