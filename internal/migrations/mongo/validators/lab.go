package validators

import "go.mongodb.org/mongo-driver/bson"

const clockPattern = `^([01][0-9]|2[0-3]):[0-5][0-9]$`

var LabValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"name", "code", "capacity", "location", "operating_hours", "is_active", "created_at"},
		"additionalProperties": true,
		"properties": bson.M{
			"_id":      bson.M{"bsonType": "objectId"},
			"name":     bson.M{"bsonType": "string", "minLength": 2, "maxLength": 100},
			"code":     bson.M{"bsonType": "string", "pattern": `^[A-Z0-9]{3,10}$`},
			"capacity": bson.M{"bsonType": []string{"int", "long"}, "minimum": 1, "maximum": 100},
			"equipment": bson.M{
				"bsonType": "array",
				"items": bson.M{
					"bsonType": "object",
					"required": []string{"name"},
					"properties": bson.M{
						"quantity": bson.M{"minimum": 0},
						"status":   bson.M{"enum": []string{"available", "maintenance", "out_of_service"}},
					},
				},
			},
			"facilities": bson.M{"bsonType": "array", "items": bson.M{"bsonType": "string"}},
			"location": bson.M{
				"bsonType": "object",
				"required": []string{"building", "room"},
			},
			"operating_hours": bson.M{
				"bsonType": "object",
				"required": []string{"open", "close"},
				"properties": bson.M{
					"open":  bson.M{"bsonType": "string", "pattern": clockPattern},
					"close": bson.M{"bsonType": "string", "pattern": clockPattern},
				},
			},
			"is_active":  bson.M{"bsonType": "bool"},
			"created_at": bson.M{"bsonType": "date"},
		},
	},
}
