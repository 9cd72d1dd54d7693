// Package schema holds the data model consumed by the query graph
// builder: models, scalar fields, relation fields and unique criteria.
//
// Data models are declared in CUE:
//
//	model: User: {
//		table: "users"
//		fields: {
//			id:        {type: "Int", id: true, default: "autoincrement"}
//			email:     {type: "String", unique: true}
//			firstName: {type: "String"}
//			lastName:  {type: "String"}
//		}
//		relations: posts: {model: "Post", list: true}
//		unique: [["firstName", "lastName"]]
//	}
//
//	model: Post: {
//		fields: {
//			id:       {type: "Int", id: true, default: "autoincrement"}
//			authorId: {type: "Int"}
//		}
//		relations: author: {model: "User", fields: ["authorId"], references: ["id"]}
//	}
//
// The side that declares `fields` holds the foreign key ("inlined").
// Relations where both sides are lists are many-to-many and are stored in
// an implicit join table named `_<Relation>` with columns A and B.
package schema
