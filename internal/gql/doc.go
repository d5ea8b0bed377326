// Package gql is the reference query engine: a small mail store exposed as
// a GraphQL schema and executed with graphql-go.
//
// Schema:
//
//	enum Importance { LOW NORMAL HIGH }
//	scalar JSON
//
//	type Folder { id: ID! name: String! unreadCount: Int! items: [Item!]! }
//	type Item {
//	  id: ID! folderId: ID! folder: Folder! subject: String! body: String!
//	  importance: Importance! read: Boolean! sizeKb: Float! properties: JSON!
//	}
//
//	type Query {
//	  folders: [Folder!]!
//	  folder(id: ID, name: String): Folder
//	  item(id: ID!): Item
//	}
//	type Mutation {
//	  createFolder(name: String!): Folder!
//	  createItem(input: NewItemInput!): Item!
//	  markRead(id: ID!, read: Boolean = true): Item!
//	  removeItem(id: ID!): ID!
//	}
//	type Subscription { itemAdded: Item! itemUpdated: Item! itemRemoved: ID! }
//
// Query and mutation operations answer inline with a single payload.
// Subscription operations stay registered until unsubscribed and receive a
// payload for every matching event. Mutations raise events after their own
// payload has been delivered; with a message pump the events are posted to
// it and delivered when the worker dispatches them.
//
// Every payload is built as a typed response tree, with kinds taken from the
// schema (ID, enum and custom scalar fields keep their kind), and then
// marshaled to JSON.
package gql
