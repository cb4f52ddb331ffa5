package validators

import "go.mongodb.org/mongo-driver/bson"

var NotificationValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"user_id", "title", "message", "type", "is_read", "priority", "created_at"},
		"additionalProperties": true,
		"properties": bson.M{
			"_id":     bson.M{"bsonType": "objectId"},
			"user_id": bson.M{"bsonType": "string", "minLength": 1},
			"title":   bson.M{"bsonType": "string", "maxLength": 200},
			"message": bson.M{"bsonType": "string", "maxLength": 1000},
			"type": bson.M{
				"enum": []string{
					"booking_created",
					"booking_approved",
					"booking_rejected",
					"booking_cancelled",
					"booking_reminder",
					"system_alert",
					"announcement",
					"report_ready",
				},
			},
			"related_to": bson.M{
				"bsonType": "object",
				"required": []string{"model", "id"},
				"properties": bson.M{
					"model": bson.M{"enum": []string{"Booking", "Lab", "Article", "Report", "User"}},
				},
			},
			"is_read":    bson.M{"bsonType": "bool"},
			"priority":   bson.M{"enum": []string{"low", "medium", "high", "urgent"}},
			"expires_at": bson.M{"bsonType": "date"},
			"created_at": bson.M{"bsonType": "date"},
		},
	},
}
