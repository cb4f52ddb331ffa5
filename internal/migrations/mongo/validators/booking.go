package validators

import "go.mongodb.org/mongo-driver/bson"

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"lab_id",
			"user_id",
			"title",
			"date",
			"start_time",
			"end_time",
			"duration",
			"status",
			"participants",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"lab_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"user_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"title": bson.M{
				"bsonType":  "string",
				"minLength": 3,
				"maxLength": 200,
			},

			"date": bson.M{
				"bsonType": "date",
			},

			"start_time": bson.M{
				"bsonType": "string",
				"pattern":  clockPattern,
			},

			"end_time": bson.M{
				"bsonType": "string",
				"pattern":  clockPattern,
			},

			"duration": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1,
			},

			"participants": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1,
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"pending",
					"approved",
					"rejected",
					"cancelled",
					"completed",
				},
			},

			"recurring": bson.M{
				"bsonType": "object",
				"properties": bson.M{
					"is_recurring": bson.M{"bsonType": "bool"},
					"frequency":    bson.M{"enum": []string{"weekly", "biweekly", "monthly"}},
					"end_date":     bson.M{"bsonType": "date"},
				},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
